// Package visual renders the snapshot into a candlestick chart image for
// vision-capable oracle models.
package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"voyant/internal/market"
	"voyant/internal/oracle"
	"voyant/internal/snapshot"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorSMAFast       = "#3b82f6"
	colorSMASlow       = "#fbbf24"
	colorBand          = "#a78bfa"

	chartWidthPx   = 1280
	klineHeightPx  = 560
	volumeHeightPx = 220
)

// Renderer draws a candlestick chart with SMA and Bollinger overlays plus a
// volume panel, screenshots it with headless Chrome and hands the PNG back as
// a data URI the oracle client can attach.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) Render(ctx context.Context, snap *snapshot.Snapshot) (oracle.Image, error) {
	if err := ensureHeadlessAvailable(ctx); err != nil {
		return oracle.Image{}, fmt.Errorf("headless chrome unavailable: %w", err)
	}
	if len(snap.Candles) == 0 {
		return oracle.Image{}, fmt.Errorf("no candles to render for %s", snap.Symbol)
	}
	html, err := buildChartHTML(snap)
	if err != nil {
		return oracle.Image{}, err
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, klineHeightPx+volumeHeightPx)
	if err != nil {
		return oracle.Image{}, fmt.Errorf("chart screenshot: %w", err)
	}
	return oracle.Image{
		DataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Description: fmt.Sprintf("%s %s candlestick with SMA5/SMA20, Bollinger(20,2) and volume",
			strings.ToUpper(snap.Symbol), snap.Interval),
	}, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// ensureHeadlessAvailable probes for a usable Chrome once per process, so a
// missing browser fails the first render fast instead of timing out every
// cycle.
func ensureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		parent, cancel := chromedp.NewContext(ctx)
		defer cancel()
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func buildChartHTML(snap *snapshot.Snapshot) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	candles := snap.Candles
	xAxis := buildXAxis(candles)
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(snap.Symbol), snap.Interval),
			Subtitle:      chartSubtitle(snap),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	klineData := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		klineData = append(klineData, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", klineData)
	kline.Overlap(buildOverlayLines(snap, xAxis))

	page.AddCharts(kline, buildVolumeChart(xAxis, candles))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func chartSubtitle(snap *snapshot.Snapshot) string {
	parts := []string{fmt.Sprintf("last %.2f", snap.Price)}
	if rsi, ok := snap.Indicators.Latest("rsi"); ok {
		parts = append(parts, fmt.Sprintf("RSI %.1f", rsi))
	}
	if v, ok := snap.Indicators.Values["macd"]; ok && v.State != "" {
		parts = append(parts, "MACD "+v.State)
	}
	return strings.Join(parts, " | ")
}

func buildOverlayLines(snap *snapshot.Snapshot, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.SetXAxis(xAxis)
	n := len(snap.Candles)
	addSeries := func(name, color string, width float32, key string) {
		v, ok := snap.Indicators.Values[key]
		if !ok || len(v.Series) == 0 {
			return
		}
		line.AddSeries(name, toLineData(v.Series, n),
			charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: width}))
	}
	addSeries("SMA5", colorSMAFast, 2, "sma5")
	addSeries("SMA20", colorSMASlow, 2, "sma20")
	addSeries("BB Upper", colorBand, 1, "bb_upper")
	addSeries("BB Lower", colorBand, 1, "bb_lower")
	return line
}

func buildVolumeChart(xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 6,
			AxisLabel:   &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value:     c.Volume,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.CloseTime).UTC().Format("01-02 15:04")
	}
	return x
}

// toLineData right-aligns a possibly shorter series against the candle axis.
func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		val := series[i]
		if math.IsNaN(val) {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: round(val, 4)}
		}
	}
	return line
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
