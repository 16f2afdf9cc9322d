// Package transactionLogParser decodes marketplace transaction receipts
// into structured events. Confirmation data such as a new task id is only
// trustworthy when extracted from an emitted event, never from a write's
// return value.
package transactionLogParser

// DecodedLog represents a decoded contract event log with its arguments
// and metadata.
type DecodedLog struct {
	// LogIndex is the position of the log in the block
	LogIndex uint64
	// Address is the contract address that emitted the event
	Address string
	// Arguments contains the decoded indexed event parameters
	Arguments []Argument
	// EventName is the name of the emitted event
	EventName string
	// OutputData contains the decoded non-indexed event data as a map
	OutputData map[string]interface{}
}

// Argument represents a single parameter in a decoded event log.
type Argument struct {
	// Name is the parameter name
	Name string
	// Type is the Solidity type of the parameter
	Type string
	// Value is the actual parameter value
	Value interface{}
	// Indexed indicates whether this was an indexed event parameter
	Indexed bool
}

// ArgumentByName returns the decoded indexed argument with the given name,
// or nil when the event has no such parameter.
func (dl *DecodedLog) ArgumentByName(name string) *Argument {
	for i := range dl.Arguments {
		if dl.Arguments[i].Name == name {
			return &dl.Arguments[i]
		}
	}
	return nil
}
