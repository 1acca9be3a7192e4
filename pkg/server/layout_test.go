package server

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no browser installed")
	}

	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Launch browser
	url := launcher.New().Bin(bin).Headless(true).MustLaunch()
	browser := rod.New().ControlURL(url).MustConnect()
	defer browser.MustClose()

	page := browser.MustPage(fmt.Sprintf("%s/?t=%d", ts.URL, time.Now().UnixNano()))
	page.MustWaitLoad()

	// Wait for the run list to be fetched
	page.MustElement(".sidebar .run")

	viewportHeight := page.MustEval(`() => window.innerHeight`).Int()

	layout := page.MustEval(`() => {
		const rect = el => {
			const r = el.getBoundingClientRect();
			return { top: r.top, height: r.height, bottom: r.bottom };
		};
		const sidebar = document.querySelector('.sidebar');
		return {
			htmlOverflow: window.getComputedStyle(document.documentElement).overflow,
			bodyOverflow: window.getComputedStyle(document.body).overflow,
			header: rect(document.querySelector('header')),
			sidebar: Object.assign(rect(sidebar), { overflowY: window.getComputedStyle(sidebar).overflowY }),
			main: rect(document.querySelector('.main')),
			runs: sidebar.querySelectorAll('.run').length,
		};
	}`).Map()
	t.Logf("Layout: %+v", layout)

	// Header at top
	header := layout["header"].Map()
	headerHeight := header["height"].Num()
	assert.InDelta(t, 0, header["top"].Num(), 2, "Header should be at top of page")
	assert.Greater(t, headerHeight, float64(30), "Header should have height")

	// Sidebar fills height below header
	sidebar := layout["sidebar"].Map()
	assert.InDelta(t, headerHeight, sidebar["top"].Num(), 2, "Sidebar should start below header")
	assert.InDelta(t, float64(viewportHeight)-headerHeight, sidebar["height"].Num(), 10, "Sidebar should fill remaining height")
	overflowY := sidebar["overflowY"].Str()
	assert.True(t, overflowY == "auto" || overflowY == "scroll", "Sidebar overflow-y: %s", overflowY)

	// Main beside sidebar
	main := layout["main"].Map()
	assert.InDelta(t, headerHeight, main["top"].Num(), 2, "Main should start below header")
	assert.Greater(t, main["height"].Num(), float64(100), "Main should have substantial height")

	// Page itself should not scroll
	assert.True(t, layout["htmlOverflow"].Str() == "hidden" || layout["bodyOverflow"].Str() == "hidden")

	require.Equal(t, 1, layout["runs"].Int(), "Recorded run should be listed")

	// Selecting a run loads its report
	page.MustElement(".sidebar .run").MustClick()
	page.MustElement(".main pre")
	assert.Contains(t, page.MustElement(".main pre").MustText(), "Audio Analysis Report")
}
