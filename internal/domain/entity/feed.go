package entity

// FeedInfo is the metadata of a fetched feed document, used to configure
// the destination pubsub node.
type FeedInfo struct {
	Title       string
	Description string
}

// Destination addresses a pubsub node on an XMPP service.
type Destination struct {
	Service string
	Node    string
}

func (d Destination) String() string {
	return d.Service + "/" + d.Node
}
