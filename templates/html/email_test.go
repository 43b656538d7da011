package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderGenericEmail(t *testing.T) {
	out := RenderGenericEmail("3 <reports>", "line one\n<script>alert(1)</script>")

	assert.Contains(t, out, "<title>3 &lt;reports&gt;</title>")
	assert.Contains(t, out, "line one<br>&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "background: linear-gradient(135deg, #f59e0b 0%, #b45309 100%)")
}
