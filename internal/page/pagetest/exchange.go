// Package pagetest provides an in-memory trading page that renders the
// reference exchange markup and reacts to clicks and field updates.
package pagetest

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/types"
)

// Parts that can be hidden with Hide.
const (
	PartSideTab    = "side_tab"
	PartLimitTab   = "limit_tab"
	PartPriceInput = "price_input"
	PartVolume     = "volume_input"
	PartSlider     = "slider"
	PartBuyButton  = "buy_button"
	PartSellButton = "sell_button"
	PartVolume24h  = "volume_24h"
	PartHistoryTab = "history_tab"
)

// Row is one order-history row as displayed.
type Row struct {
	Time      string
	Direction string
	Price     string
	Filled    string
	Total     string
	Status    string
}

// FilledRow builds a filled history row at t.
func FilledRow(t time.Time, side types.Side, price, volume string) Row {
	dir := "买入"
	if side == types.SideSell {
		dir = "卖出"
	}
	total := decimal.RequireFromString(price).Mul(decimal.RequireFromString(volume))
	return Row{
		Time:      t.Format("2006-01-02 15:04:05"),
		Direction: dir,
		Price:     price,
		Filled:    volume + " ALPHA",
		Total:     total.StringFixed(8) + " USDT",
		Status:    "已成交",
	}
}

type openOrder struct {
	side      types.Side
	price     string
	volume    string
	remaining int
}

// Exchange is a scriptable trading page. Configure the exported fields before
// handing it to the code under test; it is safe for concurrent use after that.
type Exchange struct {
	// SellableZero makes the sell slider read 0 after being set.
	SellableZero bool
	// SlippageWarning shows the slippage confirm dialog after every action click.
	SlippageWarning bool
	// FeeDialog shows the fee disclosure dialog before every submission.
	FeeDialog bool
	// FillAfter is the number of snapshots an open order survives. Negative
	// values keep orders open forever.
	FillAfter int

	TapeBuy   []string
	TapeSell  []string
	Volume24h string

	// HistoryPages are the order-history pages, newest first.
	HistoryPages [][]Row

	mu      sync.Mutex
	hidden  map[string]bool
	side    types.Side
	limit   bool
	price   string
	volume  string
	slider  string
	pending *openOrder
	modal   string
	open    []*openOrder
	view    string
	histPg  int
	events  []string
	snaps   int
	clicks  map[string]int
}

func NewExchange() *Exchange {
	return &Exchange{
		Volume24h: "$812.5M",
		hidden:    map[string]bool{},
		clicks:    map[string]int{},
		histPg:    1,
	}
}

var _ page.Page = (*Exchange)(nil)

func (x *Exchange) Hide(part string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.hidden[part] = true
}

// Events lists mutating actions in the order they happened, e.g.
// "submit buy 1.5 10" and "fill buy 1.5 10".
func (x *Exchange) Events() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.events...)
}

// EventsWithPrefix filters Events by prefix.
func (x *Exchange) EventsWithPrefix(prefix string) []string {
	var out []string
	for _, e := range x.Events() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func (x *Exchange) Snapshots() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.snaps
}

// Clicks counts clicks on a named control such as "page 3" or "reset".
func (x *Exchange) Clicks(name string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.clicks[name]
}

func (x *Exchange) OpenOrders() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.open)
}

// SetHistoryPage moves the history view to page n, as if left there by an
// earlier scan.
func (x *Exchange) SetHistoryPage(n int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.histPg = n
}

func (x *Exchange) Document(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.Lock()
	x.snaps++
	x.advance()
	body := x.render()
	x.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// advance ages open orders by one snapshot and fills the ones that are due.
func (x *Exchange) advance() {
	if x.FillAfter < 0 {
		return
	}
	kept := x.open[:0]
	for _, o := range x.open {
		if o.remaining <= 0 {
			x.events = append(x.events, fmt.Sprintf("fill %s %s %s", o.side, o.price, o.volume))
			continue
		}
		o.remaining--
		kept = append(kept, o)
	}
	x.open = kept
}

func (x *Exchange) SetFieldValue(ctx context.Context, el page.Element, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	sel, err := x.resolve(el)
	if err != nil {
		return err
	}
	id, _ := sel.Attr("id")
	role, _ := sel.Attr("role")
	switch {
	case id == "limitPrice":
		x.price = value
		x.events = append(x.events, "set price "+value)
	case id == "limitTotal":
		x.volume = value
		x.events = append(x.events, "set volume "+value)
	case role == "slider":
		x.slider = value
		if x.SellableZero {
			x.slider = "0"
		}
		x.events = append(x.events, "set slider "+value)
	default:
		return fmt.Errorf("pagetest: %s is not a form field", el.Path)
	}
	return nil
}

func (x *Exchange) Value(ctx context.Context, el page.Element) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	sel, err := x.resolve(el)
	if err != nil {
		return "", err
	}
	v, _ := sel.Attr("value")
	return v, nil
}

func (x *Exchange) Click(ctx context.Context, el page.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	sel, err := x.resolve(el)
	if err != nil {
		return err
	}
	id, _ := sel.Attr("id")
	text := strings.TrimSpace(sel.Text())

	switch {
	case sel.HasClass("bn-tab__buySell"):
		if text == "买入" {
			x.side = types.SideBuy
		} else {
			x.side = types.SideSell
		}
		x.limit = false
		x.slider = ""
		x.count("side " + string(x.side))
	case id == "bn-tab-LIMIT":
		x.limit = true
		x.count("limit")
	case sel.HasClass("bn-button__buy"), sel.HasClass("bn-button__sell"):
		x.count("action")
		x.action()
	case text == "继续" && x.modal != "":
		x.count("continue " + x.modal)
		x.proceed()
	case id == "bn-tab-orderOrder":
		x.view = "open"
		x.count("open orders")
	case id == "bn-tab-orderHistory":
		x.view = "history"
		x.count("history")
	case sel.HasClass("bn-button__text__black"):
		x.histPg = 1
		x.count("reset")
	case sel.HasClass("bn-pagination-item"):
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= x.pageCount() {
			x.histPg = n
			x.count("page " + text)
		}
	default:
		x.count(text)
	}
	return nil
}

func (x *Exchange) count(name string) {
	x.clicks[name]++
	x.events = append(x.events, "click "+name)
}

func (x *Exchange) action() {
	if !x.limit || x.side == "" {
		return
	}
	vol := x.volume
	if x.side == types.SideSell {
		vol = "all"
	}
	x.pending = &openOrder{side: x.side, price: x.price, volume: vol, remaining: x.FillAfter}
	switch {
	case x.SlippageWarning:
		x.modal = "confirm"
	case x.FeeDialog:
		x.modal = "fee"
	default:
		x.submit()
	}
}

func (x *Exchange) proceed() {
	if x.modal == "confirm" && x.FeeDialog {
		x.modal = "fee"
		return
	}
	x.modal = ""
	x.submit()
}

func (x *Exchange) submit() {
	if x.pending == nil {
		return
	}
	o := x.pending
	x.pending = nil
	x.open = append(x.open, o)
	x.events = append(x.events, fmt.Sprintf("submit %s %s %s", o.side, o.price, o.volume))
}

func (x *Exchange) pageCount() int {
	if len(x.HistoryPages) == 0 {
		return 1
	}
	return len(x.HistoryPages)
}

// resolve finds el in the current rendering. Caller holds mu.
func (x *Exchange) resolve(el page.Element) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(x.render()))
	if err != nil {
		return nil, err
	}
	sel := doc.Find(el.Path)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", page.ErrDetached, el.Path)
	}
	if !el.Fingerprint().Matches(sel.First()) {
		return nil, fmt.Errorf("%w: %s", page.ErrChanged, el.Path)
	}
	return sel.First(), nil
}

func (x *Exchange) render() string {
	var b strings.Builder
	esc := html.EscapeString
	b.WriteString("<html><head><title>alpha</title></head><body>")

	if !x.hidden[PartVolume24h] && x.Volume24h != "" {
		fmt.Fprintf(&b, `<div class="ticker"><div class="text-TertiaryText">24h成交量</div><div class="value">%s</div></div>`, esc(x.Volume24h))
	}

	b.WriteString(`<div class="order-form">`)
	if !x.hidden[PartSideTab] {
		for _, s := range []struct {
			side types.Side
			text string
		}{{types.SideBuy, "买入"}, {types.SideSell, "卖出"}} {
			active, selected := "", "false"
			if x.side == s.side {
				active, selected = " active", "true"
			}
			fmt.Fprintf(&b, `<div class="bn-tab bn-tab__buySell%s" aria-selected="%s">%s</div>`, active, selected, s.text)
		}
	}
	if !x.hidden[PartLimitTab] {
		active := ""
		if x.limit {
			active = " active"
		}
		fmt.Fprintf(&b, `<div id="bn-tab-LIMIT" class="bn-tab%s">限价</div>`, active)
	}
	if !x.hidden[PartPriceInput] {
		fmt.Fprintf(&b, `<input id="limitPrice" value="%s"/>`, esc(x.price))
	}
	if !x.hidden[PartVolume] {
		fmt.Fprintf(&b, `<input id="limitTotal" value="%s"/>`, esc(x.volume))
	}
	if x.side == types.SideSell && !x.hidden[PartSlider] {
		fmt.Fprintf(&b, `<input role="slider" value="%s"/>`, esc(x.slider))
	}
	if x.side == types.SideBuy && !x.hidden[PartBuyButton] {
		b.WriteString(`<button class="bn-button bn-button__buy">买入</button>`)
	}
	if x.side == types.SideSell && !x.hidden[PartSellButton] {
		b.WriteString(`<button class="bn-button bn-button__sell">卖出</button>`)
	}
	b.WriteString(`</div>`)

	b.WriteString(`<div class="ReactVirtualized__Grid">`)
	for i := 0; i < len(x.TapeBuy) || i < len(x.TapeSell); i++ {
		if i < len(x.TapeBuy) {
			fmt.Fprintf(&b, `<div class="tape-row"><div class="flex-1" style="color: var(--color-Buy);">%s</div><div class="flex-1">1</div></div>`, esc(x.TapeBuy[i]))
		}
		if i < len(x.TapeSell) {
			fmt.Fprintf(&b, `<div class="tape-row"><div class="flex-1" style="color: var(--color-Sell);">%s</div><div class="flex-1">1</div></div>`, esc(x.TapeSell[i]))
		}
	}
	b.WriteString(`</div>`)

	b.WriteString(`<div class="orders">`)
	b.WriteString(`<div id="bn-tab-orderOrder" class="bn-tab">当前委托</div>`)
	if !x.hidden[PartHistoryTab] {
		b.WriteString(`<div id="bn-tab-orderHistory" class="bn-tab">委托历史</div>`)
	}
	switch x.view {
	case "open":
		b.WriteString(`<div id="bn-tab-limit" class="bn-tab">限价</div>`)
		if len(x.open) == 0 {
			b.WriteString(`<div class="text-TertiaryText">无进行中的订单</div>`)
		} else {
			b.WriteString(`<div class="bn-web-table-tbody">`)
			for _, o := range x.open {
				fmt.Fprintf(&b, `<div class="bn-web-table-row"><div class="bn-web-table-cell">%s</div><div class="bn-web-table-cell">%s</div></div>`, o.side, esc(o.price))
			}
			b.WriteString(`</div>`)
		}
	case "history":
		x.renderHistory(&b)
	}
	b.WriteString(`</div>`)

	switch x.modal {
	case "confirm":
		b.WriteString(`<div class="bn-modal-confirm"><div class="title">下单手滑提醒</div><div role="dialog"><button>取消</button><button>继续</button></div></div>`)
	case "fee":
		b.WriteString(`<div class="bn-trans data-show bn-mask bn-modal"><div role="dialog"><div>预估手续费</div><button>继续</button></div></div>`)
	}

	b.WriteString("</body></html>")
	return b.String()
}

func (x *Exchange) renderHistory(b *strings.Builder) {
	esc := html.EscapeString
	b.WriteString(`<div class="bg-TradeBg"><div class="order-6">`)
	b.WriteString(`<div id="bn-tab-0" class="bn-tab" aria-selected="true">限价</div>`)
	b.WriteString(`<div class="range"><div>1天</div><div>1周</div></div>`)
	b.WriteString(`<button class="bn-button bn-button__text__black"><div>重置</div></button>`)
	b.WriteString(`<div class="bn-web-table-tbody">`)
	b.WriteString(`<div class="bn-web-table-row bn-web-table-measure-row" aria-hidden="true"><div class="bn-web-table-cell"></div></div>`)
	if x.histPg >= 1 && x.histPg <= len(x.HistoryPages) {
		for _, r := range x.HistoryPages[x.histPg-1] {
			cells := []string{"", r.Time, "ALPHA", "限价", r.Direction, "--", r.Price, r.Filled, r.Filled, r.Total, r.Status}
			b.WriteString(`<div class="bn-web-table-row">`)
			for _, c := range cells {
				fmt.Fprintf(b, `<div class="bn-web-table-cell">%s</div>`, esc(c))
			}
			b.WriteString(`</div>`)
		}
	}
	b.WriteString(`</div>`)
	b.WriteString(`<ul class="bn-pagination"><li class="bn-pagination-item bn-pagination-prev">‹</li>`)
	for n := 1; n <= x.pageCount(); n++ {
		active := ""
		if n == x.histPg {
			active = " active"
		}
		fmt.Fprintf(b, `<li class="bn-pagination-item%s">%d</li>`, active, n)
	}
	b.WriteString(`<li class="bn-pagination-item bn-pagination-next">›</li></ul>`)
	b.WriteString(`</div></div>`)
}
