package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// RegistryABI is the subset of the OriginalityFactory interface the service
// uses.
const RegistryABI = `[
  {
    "type": "function",
    "name": "getManufacturerAddress",
    "stateMutability": "view",
    "inputs": [{"name": "_manufacturer", "type": "address", "internalType": "address"}],
    "outputs": [{"name": "", "type": "address", "internalType": "address"}]
  },
  {
    "type": "function",
    "name": "manufacturerRegisters",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "_name", "type": "string", "internalType": "string"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "verifySignature",
    "stateMutability": "view",
    "inputs": [
      {"name": "_manufacturer", "type": "address", "internalType": "address"},
      {
        "name": "cert",
        "type": "tuple",
        "internalType": "struct OriginalityFactory.Certificate",
        "components": [
          {"name": "name", "type": "string", "internalType": "string"},
          {"name": "uniqueId", "type": "string", "internalType": "string"},
          {"name": "serial", "type": "string", "internalType": "string"},
          {"name": "date", "type": "uint256", "internalType": "uint256"},
          {"name": "owner", "type": "address", "internalType": "address"},
          {"name": "metadata", "type": "string[]", "internalType": "string[]"}
        ]
      },
      {"name": "signature", "type": "bytes", "internalType": "bytes"}
    ],
    "outputs": [{"name": "", "type": "bool", "internalType": "bool"}]
  },
  {
    "type": "event",
    "name": "ManufacturerRegistered",
    "anonymous": false,
    "inputs": [
      {"name": "manufacturerAddress", "type": "address", "indexed": true, "internalType": "address"},
      {"name": "manufacturerContract", "type": "address", "indexed": true, "internalType": "address"}
    ]
  }
]`

const (
	methodGetManufacturerAddress = "getManufacturerAddress"
	methodManufacturerRegisters  = "manufacturerRegisters"
	methodVerifySignature        = "verifySignature"
	eventManufacturerRegistered  = "ManufacturerRegistered"
)

var (
	registryABIOnce   sync.Once
	registryABIParsed abi.ABI
	registryABIErr    error
)

func ParsedRegistryABI() (abi.ABI, error) {
	registryABIOnce.Do(func() {
		registryABIParsed, registryABIErr = abi.JSON(strings.NewReader(RegistryABI))
	})
	return registryABIParsed, registryABIErr
}
