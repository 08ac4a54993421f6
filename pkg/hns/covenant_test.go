package hns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
)

func TestCovenantBuildersMatchLayouts(t *testing.T) {
	var h [HashSize]byte
	covenants := []RawCovenant{
		NewOpenCovenant("name"),
		NewBidCovenant("name", 1, h),
		NewRevealCovenant("name", 1, h),
		NewRedeemCovenant("name", 1),
		NewRegisterCovenant("name", 1, []byte{1, 2}, h),
		NewUpdateCovenant("name", 1, []byte{1, 2}),
		NewRenewCovenant("name", 1, h),
		NewTransferCovenant("name", 1, Address{Hash: make([]byte, 20)}),
		NewFinalizeCovenant("name", 1, 0, 0, 0, h),
		NewRevokeCovenant("name", 1),
	}

	nameHash := crypto.NameHash([]byte("name"))
	for _, cov := range covenants {
		layout, ok := cov.Type.Layout()
		require.True(t, ok, cov.Type.String())
		require.Len(t, cov.Items, len(layout), cov.Type.String())
		assert.Equal(t, nameHash[:], cov.Items[0], cov.Type.String())

		for i, kind := range layout {
			if size := kind.FixedSize(); size >= 0 {
				assert.Len(t, cov.Items[i], size, "%s %s", cov.Type, kind)
			}
		}
		assert.Equal(t, cov.Size(), len(cov.AppendTo(nil)))
	}
}

func TestCovenantNeedsName(t *testing.T) {
	for typ := CovenantNone; typ <= CovenantRevoke; typ++ {
		layout, ok := typ.Layout()
		if !ok {
			assert.Equal(t, CovenantClaim, typ)
			continue
		}
		carriesName := false
		for _, kind := range layout {
			if kind == ItemName {
				carriesName = true
			}
		}
		if typ == CovenantNone {
			assert.False(t, typ.NeedsName())
			continue
		}
		assert.Equal(t, !carriesName, typ.NeedsName(), typ.String())
	}
}
