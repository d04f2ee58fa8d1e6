package events

import "github.com/zanwyyy/contractsync/model"

// Topic names, also carried in the "type" attribute of every message.
const (
	TopicContractAdded   = "contract.added"
	TopicContractChanged = "contract.changed"
	TopicProviderChanged = "provider.changed"
	TopicRegistryUpdated = "registry.updated"
)

// ContractAdded asks the consumer to start tracking a compiled contract.
type ContractAdded struct {
	Name        string `json:"name"`
	Artifact    string `json:"artifact"`
	BytecodeHex string `json:"bytecode_hex"`
}

// ContractChanged reports that a transaction touched the contract's outputs.
type ContractChanged struct {
	Name string `json:"name"`
}

// ProviderChanged switches the active provider. Empty fields keep the
// consumer's configured values.
type ProviderChanged struct {
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint,omitempty"`
}

// RegistryUpdated is published after every installed snapshot.
type RegistryUpdated struct {
	Version   uint64           `json:"version"`
	Contracts []model.Contract `json:"contracts"`
}
