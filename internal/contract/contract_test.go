package contract

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/mysphere/internal/model"
)

func TestABIHasContractSurface(t *testing.T) {
	a := ABI()
	for _, m := range []string{MethodPlayers, MethodGetPlayerNFTs, MethodRegister, MethodCheckIn, MethodFuseElements, MethodLevelUp} {
		_, ok := a.Methods[m]
		assert.True(t, ok, "method %s", m)
	}
	for _, e := range []string{EventRegistered, EventCheckedIn, EventElementsFused, EventLeveledUp} {
		_, ok := a.Events[e]
		assert.True(t, ok, "event %s", e)
	}
	assert.Equal(t, "fuseElements(string[])", a.Methods[MethodFuseElements].Sig)
}

func TestReasonsRoundTrip(t *testing.T) {
	for _, r := range reasons {
		assert.ErrorIs(t, ErrorForReason("execution reverted: "+r.reason), r.err)
		assert.Equal(t, r.reason, ReasonFor(r.err))
	}
}

func TestReasonForCooldownError(t *testing.T) {
	err := &model.CooldownError{Remaining: 3600}
	assert.Equal(t, ReasonCooldown, ReasonFor(err))
}

func TestUnknownReason(t *testing.T) {
	assert.Nil(t, ErrorForReason("out of gas"))
	assert.Equal(t, "boom", ReasonFor(errors.New("boom")))
	assert.Equal(t, "", ReasonFor(nil))
}

func TestPlayerRecordToleratesNil(t *testing.T) {
	addr := model.Address("0x00000000000000000000000000000000000000a1")
	p := PlayerRecord{Experience: big.NewInt(5)}.ToPlayer(addr)
	require.NotNil(t, p)
	assert.Equal(t, uint64(5), p.Experience)
	assert.Equal(t, uint64(0), p.Streak)
	assert.False(t, p.IsRegistered())
}

func TestNFTRecordDerivesPower(t *testing.T) {
	owner := model.Address("0x00000000000000000000000000000000000000a1")
	rec := NFTRecord{Id: "1", ElementType: 1, Rarity: 1, Level: 2, MintedAt: big.NewInt(10)}
	el := rec.ToElement(owner)
	assert.Equal(t, uint64(400), el.Power)
	assert.False(t, rec.PowerMismatch(el))

	rec.Power = big.NewInt(400)
	assert.False(t, rec.PowerMismatch(rec.ToElement(owner)))

	rec.Power = big.NewInt(999)
	el = rec.ToElement(owner)
	assert.Equal(t, uint64(400), el.Power)
	assert.True(t, rec.PowerMismatch(el))

	rec.Power = new(big.Int).Lsh(big.NewInt(1), 70)
	assert.True(t, rec.PowerMismatch(rec.ToElement(owner)))
}
