package xmpppub

import (
	"context"
	"fmt"

	"atompub/internal/domain/entity"
	"atompub/internal/domain/repository"

	"gosrc.io/xmpp/stanza"
)

type pubsubPublisher struct {
	session *Session
}

func NewPublisher(session *Session) repository.Publisher {
	return &pubsubPublisher{session: session}
}

// EnsureNode creates and configures the destination node. A conflict reply
// means the node already exists and is treated as success.
func (p *pubsubPublisher) EnsureNode(ctx context.Context, dest entity.Destination, info entity.FeedInfo) error {
	iq, err := stanza.NewCreateAndConfigNode(dest.Service, dest.Node, nodeConfigForm(info))
	if err != nil {
		return fmt.Errorf("failed to build node creation iq: %w", err)
	}

	res, err := p.session.sendIQ(ctx, iq)
	if err != nil {
		return err
	}
	if res.Error != nil {
		if res.Error.Reason == "conflict" {
			return nil
		}
		return fmt.Errorf("create node %s: %w: %s", dest, repository.ErrPublishRejected, errorReason(res.Error))
	}
	return nil
}

// Publish sends the entry as a pubsub item. The item id is the sanitized
// entry id, so republishing overwrites instead of duplicating.
func (p *pubsubPublisher) Publish(ctx context.Context, dest entity.Destination, e *entity.Entry) error {
	item := stanza.Item{Any: atomEntryNode(e)}

	iq, err := stanza.NewPublishItemRq(dest.Service, dest.Node, entity.SanitizeItemID(e.ID), item)
	if err != nil {
		return fmt.Errorf("failed to build publish iq: %w", err)
	}

	res, err := p.session.sendIQ(ctx, iq)
	if err != nil {
		return err
	}
	if res.Error != nil {
		return fmt.Errorf("publish to %s: %w: %s", dest, repository.ErrPublishRejected, errorReason(res.Error))
	}
	return nil
}

// nodeConfigForm carries the node configuration used for feed nodes:
// persistent items without payload delivery, retract notifications, and the
// social-feed node type understood by feed-aware pubsub services.
func nodeConfigForm(info entity.FeedInfo) *stanza.Form {
	fields := []*stanza.Field{
		{Var: "pubsub#type", ValuesList: []string{"urn:xmpp:pubsub-social-feed:1"}},
		{Var: "pubsub#persist_items", ValuesList: []string{"1"}},
		{Var: "pubsub#notify_retract", ValuesList: []string{"1"}},
		{Var: "pubsub#title", ValuesList: []string{info.Title}},
		{Var: "pubsub#max_items", ValuesList: []string{"max"}},
		{Var: "pubsub#send_last_published_item", ValuesList: []string{"never"}},
		{Var: "pubsub#deliver_payloads", ValuesList: []string{"0"}},
	}
	if info.Description != "" {
		fields = append(fields, &stanza.Field{
			Var: "pubsub#description", ValuesList: []string{info.Description},
		})
	}
	return &stanza.Form{Type: stanza.FormTypeSubmit, Fields: fields}
}

func errorReason(e *stanza.Err) string {
	if e.Text != "" {
		return e.Text
	}
	return e.Reason
}
