package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fieldOwner    = "owner_name"
	fieldAssessed = "assessed_total"
)

func TestReconcile(t *testing.T) {
	t.Run("empty canonical field adopts value and origin", func(t *testing.T) {
		existing := NewPropertyRecord("3050080064", "1 Main St")

		merged := Reconcile(existing, FieldSet{fieldOwner: "ACME LLC"}, SourcePluto, nil)

		assert.Equal(t, "ACME LLC", merged.Fields[fieldOwner])
		assert.Equal(t, SourcePluto, merged.Origins[fieldOwner])
	})

	t.Run("same source overwrites its own prior value", func(t *testing.T) {
		existing := NewPropertyRecord("3050080064", "")
		existing.Fields[fieldOwner] = "OLD OWNER"
		existing.Origins[fieldOwner] = SourcePluto

		merged := Reconcile(existing, FieldSet{fieldOwner: "NEW OWNER"}, SourcePluto, nil)

		assert.Equal(t, "NEW OWNER", merged.Fields[fieldOwner])
		assert.Equal(t, SourcePluto, merged.Origins[fieldOwner])
		assert.NotContains(t, merged.Fields, QualifiedField(fieldOwner, SourcePluto))
	})

	t.Run("different source lands in qualified slot", func(t *testing.T) {
		existing := NewPropertyRecord("3050080064", "")
		existing.Fields[fieldOwner] = "PLUTO OWNER"
		existing.Origins[fieldOwner] = SourcePluto

		merged := Reconcile(existing, FieldSet{fieldOwner: "TAXROLL OWNER"}, SourceTaxRoll, nil)

		assert.Equal(t, "PLUTO OWNER", merged.Fields[fieldOwner])
		assert.Equal(t, SourcePluto, merged.Origins[fieldOwner])
		assert.Equal(t, "TAXROLL OWNER", merged.Fields[QualifiedField(fieldOwner, SourceTaxRoll)])
	})

	t.Run("disagreeing sources coexist without data loss", func(t *testing.T) {
		record := NewPropertyRecord("3050080064", "")
		record = Reconcile(record, FieldSet{fieldOwner: "PLUTO OWNER"}, SourcePluto, nil)
		record = Reconcile(record, FieldSet{fieldOwner: "TAXROLL OWNER"}, SourceTaxRoll, nil)
		record = Reconcile(record, FieldSet{fieldOwner: "HPD OWNER"}, SourceHPD, nil)

		assert.Equal(t, "PLUTO OWNER", record.Fields[fieldOwner])
		assert.Equal(t, "TAXROLL OWNER", record.Fields[QualifiedField(fieldOwner, SourceTaxRoll)])
		assert.Equal(t, "HPD OWNER", record.Fields[QualifiedField(fieldOwner, SourceHPD)])
	})

	t.Run("empty incoming value never clears a populated field", func(t *testing.T) {
		existing := NewPropertyRecord("3050080064", "")
		existing.Fields[fieldOwner] = "KEPT"
		existing.Origins[fieldOwner] = SourcePluto

		merged := Reconcile(existing, FieldSet{fieldOwner: ""}, SourcePluto, nil)
		assert.Equal(t, "KEPT", merged.Fields[fieldOwner])

		merged = Reconcile(existing, FieldSet{fieldOwner: "   "}, SourceTaxRoll, nil)
		assert.Equal(t, "KEPT", merged.Fields[fieldOwner])
		assert.NotContains(t, merged.Fields, QualifiedField(fieldOwner, SourceTaxRoll))
	})

	t.Run("precedence demotes the current holder instead of discarding it", func(t *testing.T) {
		precedence := PrecedencePolicy{
			fieldAssessed: {SourcePluto, SourceTaxRoll},
		}

		existing := NewPropertyRecord("3050080064", "")
		existing.Fields[fieldAssessed] = "900000"
		existing.Origins[fieldAssessed] = SourceTaxRoll

		merged := Reconcile(existing, FieldSet{fieldAssessed: "1250000"}, SourcePluto, precedence)

		assert.Equal(t, "1250000", merged.Fields[fieldAssessed])
		assert.Equal(t, SourcePluto, merged.Origins[fieldAssessed])
		assert.Equal(t, "900000", merged.Fields[QualifiedField(fieldAssessed, SourceTaxRoll)])
	})

	t.Run("lower precedence source does not displace the canonical value", func(t *testing.T) {
		precedence := PrecedencePolicy{
			fieldAssessed: {SourcePluto, SourceTaxRoll},
		}

		existing := NewPropertyRecord("3050080064", "")
		existing.Fields[fieldAssessed] = "1250000"
		existing.Origins[fieldAssessed] = SourcePluto

		merged := Reconcile(existing, FieldSet{fieldAssessed: "900000"}, SourceTaxRoll, precedence)

		assert.Equal(t, "1250000", merged.Fields[fieldAssessed])
		assert.Equal(t, "900000", merged.Fields[QualifiedField(fieldAssessed, SourceTaxRoll)])
	})

	t.Run("repeated merge of the same payload is a no-op", func(t *testing.T) {
		record := NewPropertyRecord("3050080064", "")
		payload := FieldSet{fieldOwner: "ACME LLC", fieldAssessed: "1250000"}

		once := Reconcile(record, payload, SourcePluto, nil)
		twice := Reconcile(once, payload, SourcePluto, nil)

		assert.Equal(t, once.Fields, twice.Fields)
		assert.Equal(t, once.Origins, twice.Origins)
	})

	t.Run("does not mutate the input record", func(t *testing.T) {
		existing := NewPropertyRecord("3050080064", "")
		existing.Fields[fieldOwner] = "ORIGINAL"
		existing.Origins[fieldOwner] = SourcePluto

		_ = Reconcile(existing, FieldSet{fieldOwner: "CHANGED"}, SourceTaxRoll, nil)

		assert.Equal(t, "ORIGINAL", existing.Fields[fieldOwner])
		require.Len(t, existing.Fields, 1)
	})
}

func TestPropertyRecordClone(t *testing.T) {
	record := NewPropertyRecord("3050080064", "1 Main St")
	record.Fields[fieldOwner] = "ACME LLC"
	record.Origins[fieldOwner] = SourcePluto

	clone := record.Clone()
	clone.Fields[fieldOwner] = "CHANGED"
	clone.Origins[fieldOwner] = SourceTaxRoll

	assert.Equal(t, "ACME LLC", record.Fields[fieldOwner])
	assert.Equal(t, SourcePluto, record.Origins[fieldOwner])
}
