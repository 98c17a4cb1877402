package translit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "μπρο", want: "mpro"},
		{in: "μπρό", want: "mpro"},
		{in: "ΜΠΡΌ", want: "mpro"},
		{in: "μπρο\u0301", want: "mpro"},
		{in: "Γαμάτο", want: "gamato"},
		{in: "κάνω κοπάνα!", want: "kanokopana"},
		{in: "ψυχή", want: "psychi"},
		{in: "θεός", want: "theos"},
		{in: "Ξενέρωτος", want: "xenerotos"},
		{in: "LOL 2024", want: "lol2024"},
		{in: "---", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Key(tc.in))
		})
	}
}

func TestKeyAccentVariantsCollide(t *testing.T) {
	assert.Equal(t, Key("φάση"), Key("φαση"))
	assert.Equal(t, Key("Ψώνιο"), Key("ψωνιο"))
	assert.NotEqual(t, Key("φάση"), Key("φάσεις"))
}

func TestExtractWords(t *testing.T) {
	got := ExtractWords("Είναι γαμάτο, ρε! Γαμάτο («πολύ») καλό.")
	assert.Equal(t, []string{"είναι", "γαμάτο", "γαμάτο", "πολύ", "καλό"}, got)
}

func TestExtractWordsSplitsOnPunctuation(t *testing.T) {
	assert.Equal(t, []string{"γαμάτο", "κουλ", "οδός"}, ExtractWords("γαμάτο/κουλ οδός"))
	assert.Equal(t, []string{"μπρο", "φάση"}, ExtractWords("μπρο-φάση"))
	assert.Equal(t, []string{"αγαπώ"}, ExtractWords("σ'αγαπώ"))
}

func TestExtractWordsDropsShortTokens(t *testing.T) {
	assert.Empty(t, ExtractWords("ρε να μη"))
	assert.Equal(t, []string{"μπρο"}, ExtractWords("ε μπρο;"))
}

func TestExtractWordsThenKeyMatchesTermKey(t *testing.T) {
	words := ExtractWords("Το φαγητό ήταν ΓΑΜΆΤΟ.")
	keys := make([]string, 0, len(words))
	for _, w := range words {
		keys = append(keys, Key(w))
	}
	assert.Contains(t, keys, Key("γαμάτο"))
}

func TestFormatDialogue(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "two turns",
			in:   "- Τι λες ρε; - Τίποτα μπρο.",
			want: "- Τι λες ρε;\n- Τίποτα μπρο.",
		},
		{
			name: "three turns with extra spacing",
			in:   "- Πάμε;   - Πού; - Έξω.",
			want: "- Πάμε;\n- Πού;\n- Έξω.",
		},
		{
			name: "single dash is not dialogue",
			in:   "κάτι - κάτι άλλο",
			want: "κάτι - κάτι άλλο",
		},
		{
			name: "hyphenated word untouched",
			in:   "ε-mail",
			want: "ε-mail",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDialogue(tc.in))
		})
	}
}
