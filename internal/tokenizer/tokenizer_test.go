package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansonxing23/mt-evaluation/internal/language"
)

func TestZh(t *testing.T) {
	z := NewZh()
	assert.Equal(t,
		"4 月 17 日 ， 外 交 部 发 言 人 赵 立 坚 主 持 例 行 记 者 会 test .",
		z.Parse("4月17日，外交部发言人赵立坚主持例行记者会test."))
	assert.Equal(t, []string{"我", "爱", "北", "京"}, z.RawParse("  我爱北京 "))
	assert.Empty(t, z.RawParse("   "))
}

func TestTer(t *testing.T) {
	tests := []struct {
		name string
		opts TerOptions
		in   string
		want string
	}{
		{"plain lowercases", TerOptions{}, "Hello  World", "hello world"},
		{"case sensitive", TerOptions{CaseSensitive: true}, "Hello World", "Hello World"},
		{"normalized punctuation", TerOptions{Normalized: true}, "Hello, world!", "hello , world !"},
		{"normalized keeps numbers", TerOptions{Normalized: true}, "pi is 3.14", "pi is 3.14"},
		{"normalized possessive", TerOptions{Normalized: true}, "it's John's", "it 's john 's"},
		{"normalized xml escapes", TerOptions{Normalized: true}, "a &amp; b", "a & b"},
		{"no punct", TerOptions{NoPunct: true}, "hello, (big) world!", "hello big world"},
		{"asian", TerOptions{Normalized: true, AsianSupport: true}, "我爱你。", "我 爱 你 。"},
		{"asian no punct", TerOptions{NoPunct: true, AsianSupport: true}, "我爱你。", "我爱你"},
		{"no punct symbols", TerOptions{NoPunct: true}, "it's $5, 50% a~b", "its 5 50 ab"},
		{"no punct unicode", TerOptions{NoPunct: true}, "«bonjour» ¿qué? ok…", "bonjour qué ok"},
		{"no punct full width", TerOptions{NoPunct: true}, "你好，世界！「引用」", "你好世界引用"},
		{"blank", TerOptions{Normalized: true}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTer(tt.opts).Parse(tt.in))
		})
	}
	assert.Empty(t, NewTer(TerOptions{}).RawParse("   "))
}

func TestEuroEnglish(t *testing.T) {
	e, err := NewEuro(language.English)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"Hello", ",", "world", ".", "I", "do", "n't", "know", "."},
		e.RawParse("Hello, world. I don't know."))
	assert.Equal(t, "The well-known firm 's shares rose ( again ) .",
		e.Parse("The well-known firm's shares rose (again)."))
	assert.Equal(t, "\" Quoted \" text ...", e.Parse(`"Quoted" text...`))
}

func TestEuroFrench(t *testing.T) {
	e, err := NewEuro(language.French)
	require.NoError(t, err)
	assert.Equal(t, "L' homme est là .", e.Parse("L'homme est là."))
}

func TestJa(t *testing.T) {
	j, err := NewJa()
	require.NoError(t, err)
	assert.Equal(t, "すもも も もも も もも の うち", j.Parse("すもももももももものうち"))
}

func TestForLanguage(t *testing.T) {
	tests := []struct {
		lang language.Language
		want any
	}{
		{language.English, &Euro{}},
		{language.German, &Euro{}},
		{language.Chinese, &Zh{}},
		{language.Japanese, &Ja{}},
		{language.Korean, &Euro{}},
	}
	for _, tt := range tests {
		tok, err := ForLanguage(tt.lang)
		require.NoError(t, err, tt.lang.Name)
		assert.IsType(t, tt.want, tok, tt.lang.Name)
	}
}

func BenchmarkEuro(b *testing.B) {
	e, err := NewEuro(language.English)
	if err != nil {
		b.Fatal(err)
	}
	text := "Distributed evaluation runs the metrics across many sentences. Each sentence is tokenized first, isn't it?"
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = e.RawParse(text)
	}
}
