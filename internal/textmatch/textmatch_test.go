package textmatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "DEBITO AUTOMATICO CONTA LUZ", Normalize("  Débito automático - conta/luz "))
	require.Equal(t, "PIX ENVIADO JOAO 123", Normalize("pix enviado: joão *123"))
	require.Equal(t, "", Normalize(" ** "))
}

func TestTokensStripNoise(t *testing.T) {
	t.Parallel()

	toks := Tokens("PIX ENVIADO ALUGUEL SALA 01")
	require.Contains(t, toks, "ALUGUEL")
	require.Contains(t, toks, "SALA")
	require.NotContains(t, toks, "PIX")
	require.NotContains(t, toks, "ENVIADO")
	require.NotContains(t, toks, "01")

	toks = Tokens("DEB AUT TED ENERGIA")
	require.Len(t, toks, 1)
	require.Contains(t, toks, "ENERGIA")

	// noise is only stripped at the start
	toks = Tokens("ENERGIA PIX ELETRICA")
	require.Contains(t, toks, "PIX")
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.6, Jaccard("PIX ALUGUEL LOJA CENTRO MARCO", "aluguel loja centro abril"), 1e-9)
	require.InDelta(t, 1.0, Jaccard("TED Condominio Edificio", "condomínio edifício"), 1e-9)
	require.Equal(t, 0.0, Jaccard("PIX", "ALUGUEL"))
	require.Equal(t, 0.0, Jaccard("", ""))
	require.Equal(t, Jaccard("ALUGUEL SALA", "SALA COMERCIAL"), Jaccard("SALA COMERCIAL", "ALUGUEL SALA"))
}

func TestEditRatio(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, EditRatio("Netflix", "NETFLIX"))
	require.Equal(t, 0.0, EditRatio("", ""))
	r := EditRatio("NETFLIX COM", "NETFLIX.COM BR")
	require.Greater(t, r, 0.5)
	require.Less(t, r, 1.0)
}
