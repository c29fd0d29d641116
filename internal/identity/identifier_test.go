package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "uzbek with plus", raw: "+998901234567", want: "998901234567"},
		{name: "uzbek formatted", raw: "998 (90) 123-45-67", want: "998901234567"},
		{name: "russian leading eight", raw: "8 916 123 45 67", want: "79161234567"},
		{name: "russian leading seven", raw: "+7-916-123-45-67", want: "79161234567"},
		{name: "too short", raw: "99890123", wantErr: true},
		{name: "unknown country", raw: "+237650000000", wantErr: true},
		{name: "eleven digits wrong prefix", raw: "99161234567", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhoneIsIdempotentForUzbekNumbers(t *testing.T) {
	for _, raw := range []string{"+998901234567", "998 99 000 00 00", "(998)711234567"} {
		once, err := NormalizePhone(raw)
		require.NoError(t, err)
		twice, err := NormalizePhone(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestParseIdentifierDetectsKind(t *testing.T) {
	phone, err := ParseIdentifier("+998901234567")
	require.NoError(t, err)
	assert.Equal(t, Identifier{Kind: KindPhone, Value: "998901234567"}, phone)

	email, err := ParseIdentifier("  Master@Garage.UZ ")
	require.NoError(t, err)
	assert.Equal(t, Identifier{Kind: KindEmail, Value: "master@garage.uz"}, email)

	_, err = ParseIdentifier("@garage.uz")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	assert.NotEqual(t, Identifier{Kind: KindPhone, Value: "x"}.String(), Identifier{Kind: KindEmail, Value: "x"}.String())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "UZ_901234567", DisplayName(Identifier{Kind: KindPhone, Value: "998901234567"}))
	assert.Equal(t, "RU_9161234567", DisplayName(Identifier{Kind: KindPhone, Value: "79161234567"}))
	assert.Equal(t, "ivan", DisplayName(Identifier{Kind: KindEmail, Value: "ivan@mail.ru"}))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Master ")
	require.NoError(t, err)
	assert.Equal(t, RoleMaster, role)

	role, err = ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
