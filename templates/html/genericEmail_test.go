package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderGenericEmailEscapes(t *testing.T) {
	out := RenderGenericEmail("<b>hi</b>", "line one\n<script>")
	assert.Contains(t, out, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, out, "line one<br>&lt;script&gt;")
	assert.NotContains(t, out, "<script>")
}

func TestRenderComplaintDigest(t *testing.T) {
	now := time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC)
	items := []DigestItem{
		{ID: "c1", Category: "garbage", Status: "submitted", Latitude: 12.9716, Longitude: 77.5946, CreatedAt: now.Add(-26 * time.Hour)},
		{ID: "c2", Category: "road", Status: "review", Sweeper: "Rajesh", CreatedAt: now.Add(-time.Hour)},
	}

	subject, plain, html := RenderComplaintDigest("Munish", items, "https://swachhsnap.in/admin", now)

	assert.Equal(t, "SwachhSnap: 2 high priority complaint(s) pending", subject)
	assert.Contains(t, plain, "Hi Munish,")
	assert.Contains(t, plain, "garbage (c1) at 12.97160, 77.59460, submitted, open 26h0m0s, sweeper: unassigned")
	assert.Contains(t, plain, "sweeper: Rajesh")
	assert.Contains(t, plain, "https://swachhsnap.in/admin")
	assert.Contains(t, html, subject)
}
