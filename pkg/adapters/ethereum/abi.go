package ethereum

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryABI = `[
  {"type":"function","name":"create","stateMutability":"nonpayable",
   "inputs":[{"name":"_miembros","type":"address[]"},{"name":"_creador","type":"address"},
             {"name":"_nombre","type":"string"},{"name":"_descripcion","type":"string"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getAllWallets","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"event","name":"WalletCreated","anonymous":false,
   "inputs":[{"name":"owner","type":"address","indexed":true},
             {"name":"walletAddress","type":"address","indexed":false}]}
]`

const walletABI = `[
  {"type":"function","name":"crearPropuesta","stateMutability":"nonpayable",
   "inputs":[{"name":"_destinatario","type":"address"},{"name":"_miembro","type":"address"},
             {"name":"_monto","type":"uint256"},{"name":"_descripcion","type":"string"},
             {"name":"_esGasto","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"verPropuesta","stateMutability":"view",
   "inputs":[{"name":"_idPropuesta","type":"uint256"}],
   "outputs":[{"name":"destinatario","type":"address"},{"name":"monto","type":"uint256"},
              {"name":"descripcion","type":"string"},{"name":"fechaLimite","type":"uint256"},
              {"name":"confirmaciones","type":"uint256"},{"name":"tipo","type":"uint8"},
              {"name":"estado","type":"uint8"}]},
  {"type":"function","name":"confirmarPropuesta","stateMutability":"nonpayable",
   "inputs":[{"name":"_idPropuesta","type":"uint256"},{"name":"_miembro","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"totalPropuestas","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"saldoWallet","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// contracts holds the parsed factory and wallet interfaces.
// Methods are resolved by name against both, factory first.
type contracts struct {
	factory abi.ABI
	wallet  abi.ABI
}

func loadContracts() (contracts, error) {
	factory, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return contracts{}, fmt.Errorf("parse factory abi: %w", err)
	}
	wallet, err := abi.JSON(strings.NewReader(walletABI))
	if err != nil {
		return contracts{}, fmt.Errorf("parse wallet abi: %w", err)
	}
	return contracts{factory: factory, wallet: wallet}, nil
}

func (c contracts) method(name string) (abi.Method, error) {
	if m, ok := c.factory.Methods[name]; ok {
		return m, nil
	}
	if m, ok := c.wallet.Methods[name]; ok {
		return m, nil
	}
	return abi.Method{}, fmt.Errorf("unknown contract method %q", name)
}

func (c contracts) events() []abi.Event {
	out := make([]abi.Event, 0, len(c.factory.Events)+len(c.wallet.Events))
	for _, e := range c.factory.Events {
		out = append(out, e)
	}
	for _, e := range c.wallet.Events {
		out = append(out, e)
	}
	return out
}
