package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingValidate(t *testing.T) {
	assert.NoError(t, Binding{Name: "sichat_data", Region: "fra"}.Validate())
	assert.ErrorIs(t, Binding{Name: "sichat_data"}.Validate(), ErrInvalidBinding)
	assert.ErrorIs(t, Binding{Region: "fra"}.Validate(), ErrInvalidBinding)
	assert.ErrorIs(t, Binding{}.Validate(), ErrInvalidBinding)
}
