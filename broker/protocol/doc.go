// Package protocol defines the datamodel shared by stream clients and the
// wire protocol layer beneath them: broker Endpoints, ConnectionParameters,
// broker ResponseCodes, StreamSpecs and their LeaderLocator policy, and the
// StreamInfo returned by metadata queries. Types are highly exacting in the
// "shapes" they allow (through implementations of the Validator interface),
// so that invalid values are caught before they're sent to a broker.
//
// The package also defines the Connection and Dialer interfaces, which are
// the capability through which clients reach brokers, and ConnectError,
// which classifies failures to open a Connection as either specific to one
// broker or fatal to all of them.
//
// By convention, this package is usually imported as `pb`, short for
// "Protocol of Broker", due to its ubiquity:
//
//	import pb "go.gazette.dev/streams/broker/protocol"
package protocol
