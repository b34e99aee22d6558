package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStoryHTML(t *testing.T) {
	dirty := `<p>The door creaked.</p><script>alert("boo")</script><img src="/x.png">`
	clean := SanitizeStoryHTML(dirty)

	assert.Contains(t, clean, "<p>The door creaked.</p>")
	assert.Contains(t, clean, "<img")
	assert.NotContains(t, clean, "<script")
	assert.NotContains(t, clean, "alert")
}

func TestRenderMarkdown(t *testing.T) {
	out := string(RenderMarkdown("I **saw** it too"))
	assert.Contains(t, out, "<strong>saw</strong>")

	// 行内混进脚本标签：标签被剥掉，前后文字原样保留
	out = string(RenderMarkdown("hello <script>alert(1)</script> world"))
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "world")

	// 整行都是脚本块：按块级 HTML 整体丢弃，输出里没有可执行内容
	out = string(RenderMarkdown("<script>alert(1)</script>"))
	assert.NotContains(t, out, "<script")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "The door creaked.", StripHTML("<p>The door <b>creaked</b>.</p>"))
	assert.Equal(t, "a & b", StripHTML("a &amp; b"))
	assert.Equal(t, "plain text", StripHTML("plain text"))
	assert.Equal(t, "", StripHTML("<br><hr>"))
}

func TestMakeExcerpt(t *testing.T) {
	short := MakeExcerpt("<p>short story</p>", 200)
	assert.Equal(t, "short story", short)

	long := MakeExcerpt("<p>"+strings.Repeat("a", 300)+"</p>", 200)
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Len(t, long, 203)

	// 多字节字符按 rune 截断，不能撕裂
	cn := MakeExcerpt(strings.Repeat("鬼", 10), 5)
	assert.Equal(t, strings.Repeat("鬼", 5)+"...", cn)
}
