package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    StateLossPolicy
		wantErr bool
	}{
		{in: "postpone", want: PolicyPostpone},
		{in: "IGNORE", want: PolicyIgnore},
		{in: " error ", want: PolicyError},
		{in: "retry", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateLossPolicy_Text(t *testing.T) {
	for _, p := range []StateLossPolicy{PolicyPostpone, PolicyIgnore, PolicyError} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var back StateLossPolicy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}

	var p StateLossPolicy
	assert.Error(t, p.UnmarshalText([]byte("sometimes")))
	assert.Equal(t, "policy(7)", StateLossPolicy(7).String())
}
