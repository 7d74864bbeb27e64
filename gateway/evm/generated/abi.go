// Package generated holds contract ABI definitions used by the EVM gateway.
package generated

// ERC20ABI is the minimal ERC-20 interface used for token transfers.
const ERC20ABI = `[
  {
    "constant": false,
    "inputs": [
      {"name": "_to", "type": "address"},
      {"name": "_value", "type": "uint256"}
    ],
    "name": "transfer",
    "outputs": [{"name": "", "type": "bool"}],
    "type": "function"
  },
  {
    "constant": true,
    "inputs": [{"name": "_owner", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"name": "balance", "type": "uint256"}],
    "type": "function"
  }
]`

// EscrowABI is the escrow contract surface the automation core drives:
// deposit acknowledgement, release initiation/confirmation, cancellation,
// and the state view.
const EscrowABI = `[
  {
    "inputs": [
      {"name": "bridgeTransactionId", "type": "string"},
      {"name": "sourceChain", "type": "string"},
      {"name": "sender", "type": "address"},
      {"name": "amount", "type": "uint256"},
      {"name": "tokenAddress", "type": "address"}
    ],
    "name": "acknowledgeDeposit",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "targetChain", "type": "string"},
      {"name": "targetAddress", "type": "address"}
    ],
    "name": "initiateRelease",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"name": "bridgeTransactionId", "type": "string"}],
    "name": "confirmRelease",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "releaseFunds",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "cancelAfterDisputeDeadline",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "state",
    "outputs": [{"name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  }
]`
