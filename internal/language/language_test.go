package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want Language
	}{
		{"en", English},
		{"EN", English},
		{"en-US", English},
		{"zh", Chinese},
		{"zh-CN", Chinese},
		{"Chinese", Chinese},
		{"japanese", Japanese},
		{"de", German},
		{"ko", Korean},
		{"unspecified", Unspecified},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, in := range []string{"", "klingonese", "xx-YY-ZZ-QQ"} {
		_, err := Resolve(in)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedLanguage, in)
	}
}

func TestIsAsian(t *testing.T) {
	for _, code := range []string{"zh", "ja", "ko", "th", "vi"} {
		assert.True(t, MustResolve(code).IsAsian(), code)
	}
	for _, l := range []Language{English, French, German, Spanish, Unspecified} {
		assert.False(t, l.IsAsian(), l.Name)
	}
}
