package breathing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_DurationMatchesTypeDefault(t *testing.T) {
	g := New(Config{Enabled: true}, 16000)

	normal := g.Generate(Normal, nil)
	assert.Equal(t, defaultNormalMs*16000/1000*2, len(normal))

	deep := g.Generate(Deep, nil)
	assert.Equal(t, defaultMaxMs*16000/1000*2, len(deep))

	quick := g.Generate(Quick, nil)
	assert.Equal(t, defaultMinMs*16000/1000*2, len(quick))
}

func TestGenerate_ExplicitDurationOverrides(t *testing.T) {
	g := New(Config{Enabled: true}, 16000)
	ms := 150
	out := g.Generate(Normal, &ms)
	assert.Equal(t, ms*16000/1000*2, len(out))
}

func TestGenerate_NeverExceedsSampleBounds(t *testing.T) {
	g := New(Config{Enabled: true}, 8000)
	for _, typ := range []Type{Normal, Deep, Quick, Sigh} {
		out := g.Generate(typ, nil)
		for i := 0; i+1 < len(out); i += 2 {
			sample := int16(out[i]) | int16(out[i+1])<<8
			assert.LessOrEqual(t, sample, int16(32767))
			assert.GreaterOrEqual(t, sample, int16(-32768))
		}
	}
}

func TestShouldInsert_DisabledNeverInserts(t *testing.T) {
	g := New(Config{Enabled: false}, 16000)
	d := g.ShouldInsert(30, true, false)
	assert.False(t, d.Insert)
}

func TestShouldInsert_LongSentenceEndIsNormal(t *testing.T) {
	g := New(Config{Enabled: true}, 16000)
	d := g.ShouldInsert(20, true, false)
	assert.True(t, d.Insert)
	assert.Equal(t, Normal, d.Type)
}

func TestShouldInsert_VeryLongSentenceEndIsDeep(t *testing.T) {
	g := New(Config{Enabled: true}, 16000)
	d := g.ShouldInsert(30, true, false)
	assert.True(t, d.Insert)
	assert.Equal(t, Deep, d.Type)
}

func TestShouldInsert_LongPauseIsNormal(t *testing.T) {
	g := New(Config{Enabled: true}, 16000)
	d := g.ShouldInsert(5, false, true)
	assert.True(t, d.Insert)
	assert.Equal(t, Normal, d.Type)
}

func TestShouldInsert_ShortSentenceNoInsertion(t *testing.T) {
	g := New(Config{Enabled: true}, 16000)
	d := g.ShouldInsert(5, true, false)
	assert.False(t, d.Insert)
}
