package genesis

import (
	"fmt"

	"steadrent/core/state"
	"steadrent/crypto"
	"steadrent/native/exhibition"
)

// Apply writes the genesis allocations into mgr. The caller commits. Genesis
// allocations carry no storage deposit.
func (s *Spec) Apply(mgr *state.Manager) error {
	if mgr == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	for _, bal := range sortedBalances(s.Balances) {
		id := crypto.MustParseIdentity(bal.Address)
		if err := mgr.Credit(id, bal.Amount); err != nil {
			return fmt.Errorf("credit %s: %w", id, err)
		}
	}
	for _, asset := range s.Assets {
		id := crypto.MustParseIdentity(asset.ID)
		owner := crypto.MustParseIdentity(asset.Owner)
		if _, err := mgr.MintAsset(owner, id); err != nil {
			return fmt.Errorf("mint %s: %w", id, err)
		}
	}
	if s.Config != nil {
		engine := exhibition.NewEngine()
		engine.SetState(mgr)
		recipient := crypto.MustParseIdentity(s.Config.FeeRecipient)
		if _, err := engine.InitConfig(crypto.ZeroIdentity, recipient, s.Config.FeeRateBps); err != nil {
			return fmt.Errorf("init config: %w", err)
		}
	}
	return mgr.MarkGenesisApplied(s.Hash())
}
