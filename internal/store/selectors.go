package store

import (
	"errors"
	"fmt"
)

// Selectors holds all markup the bot depends on. The defaults match the
// reference exchange page; override them in config.yaml when the page
// changes.
type Selectors struct {
	SideTab       string `yaml:"side_tab"`
	BuyTabText    string `yaml:"buy_tab_text"`
	SellTabText   string `yaml:"sell_tab_text"`
	LimitTab      string `yaml:"limit_tab"`
	PriceInput    string `yaml:"price_input"`
	VolumeInput   string `yaml:"volume_input"`
	SellSlider    string `yaml:"sell_slider"`
	BuyButton     string `yaml:"buy_button"`
	SellButton    string `yaml:"sell_button"`
	ActiveClass   string `yaml:"active_class"`
	ConfirmModal  string `yaml:"confirm_modal"`
	ConfirmText   string `yaml:"confirm_text"`
	Dialog        string `yaml:"dialog"`
	ContinueText  string `yaml:"continue_text"`
	FeeModal      string `yaml:"fee_modal"`
	FeeText       string `yaml:"fee_text"`
	OpenOrdersTab string `yaml:"open_orders_tab"`
	OpenLimitTab  string `yaml:"open_limit_tab"`
	NoOrdersTip   string `yaml:"no_orders_tip"`
	NoOrdersText  string `yaml:"no_orders_text"`

	TapeBuy  string `yaml:"tape_buy"`
	TapeSell string `yaml:"tape_sell"`

	VolumeLabel     string `yaml:"volume_label"`
	VolumeLabelText string `yaml:"volume_label_text"`

	HistoryTab      string `yaml:"history_tab"`
	HistoryRegion   string `yaml:"history_region"`
	HistoryLimitTab string `yaml:"history_limit_tab"`
	RangeText       string `yaml:"range_text"`
	ResetButton     string `yaml:"reset_button"`
	ResetText       string `yaml:"reset_text"`
	Rows            string `yaml:"rows"`
	RowsFallback    string `yaml:"rows_fallback"`
	Cells           string `yaml:"cells"`
	CellsFallback   string `yaml:"cells_fallback"`
	PageItem        string `yaml:"page_item"`
	PageActive      string `yaml:"page_active"`

	Columns Columns `yaml:"columns"`

	BuyLabels    []string `yaml:"buy_labels"`
	SellLabels   []string `yaml:"sell_labels"`
	FilledLabels []string `yaml:"filled_labels"`
	TimeLayouts  []string `yaml:"time_layouts"`
}

// Columns are zero-based cell indexes of an order-history row.
type Columns struct {
	Time      int `yaml:"time"`
	Direction int `yaml:"direction"`
	Price     int `yaml:"price"`
	Filled    int `yaml:"filled"`
	Total     int `yaml:"total"`
	Status    int `yaml:"status"`
}

func (c Columns) all() []int {
	return []int{c.Time, c.Direction, c.Price, c.Filled, c.Total, c.Status}
}

func DefaultSelectors() Selectors {
	var s Selectors
	s.applyDefaults()
	return s
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func (s *Selectors) applyDefaults() {
	setDefault(&s.SideTab, ".bn-tab.bn-tab__buySell")
	setDefault(&s.BuyTabText, "买入")
	setDefault(&s.SellTabText, "卖出")
	setDefault(&s.LimitTab, "#bn-tab-LIMIT")
	setDefault(&s.PriceInput, "#limitPrice")
	setDefault(&s.VolumeInput, "#limitTotal")
	setDefault(&s.SellSlider, `input[role="slider"]`)
	setDefault(&s.BuyButton, ".bn-button.bn-button__buy")
	setDefault(&s.SellButton, ".bn-button.bn-button__sell")
	setDefault(&s.ActiveClass, "active")
	setDefault(&s.ConfirmModal, ".bn-modal-confirm")
	setDefault(&s.ConfirmText, "下单手滑提醒")
	setDefault(&s.Dialog, `div[role="dialog"]`)
	setDefault(&s.ContinueText, "继续")
	setDefault(&s.FeeModal, ".bn-trans.data-show.bn-mask.bn-modal")
	setDefault(&s.FeeText, "预估手续费")
	setDefault(&s.OpenOrdersTab, "#bn-tab-orderOrder")
	setDefault(&s.OpenLimitTab, "#bn-tab-limit")
	setDefault(&s.NoOrdersTip, "div.text-TertiaryText")
	setDefault(&s.NoOrdersText, "无进行中的订单")

	setDefault(&s.TapeBuy, `.ReactVirtualized__Grid .flex-1[style*="color: var(--color-Buy)"]`)
	setDefault(&s.TapeSell, `.ReactVirtualized__Grid .flex-1[style*="color: var(--color-Sell)"]`)

	setDefault(&s.VolumeLabel, "div.text-TertiaryText")
	setDefault(&s.VolumeLabelText, "24h成交量")

	setDefault(&s.HistoryTab, `[id="bn-tab-orderHistory"]`)
	setDefault(&s.HistoryRegion, "div.bg-TradeBg div.order-6")
	setDefault(&s.HistoryLimitTab, "#bn-tab-0")
	setDefault(&s.RangeText, "1周")
	setDefault(&s.ResetButton, "button.bn-button__text__black")
	setDefault(&s.ResetText, "重置")
	setDefault(&s.Rows, ".bn-web-table-tbody .bn-web-table-row:not(.bn-web-table-measure-row)")
	setDefault(&s.RowsFallback, "table tbody tr")
	setDefault(&s.Cells, ".bn-web-table-cell")
	setDefault(&s.CellsFallback, "td")
	setDefault(&s.PageItem, ".bn-pagination-item")
	setDefault(&s.PageActive, ".bn-pagination-item.active")

	if s.Columns == (Columns{}) {
		s.Columns.Time = 1
		s.Columns.Direction = 4
		s.Columns.Price = 6
		s.Columns.Filled = 7
		s.Columns.Total = 9
		s.Columns.Status = 10
	}

	if len(s.BuyLabels) == 0 {
		s.BuyLabels = []string{"买入", "Buy"}
	}
	if len(s.SellLabels) == 0 {
		s.SellLabels = []string{"卖出", "Sell"}
	}
	if len(s.FilledLabels) == 0 {
		s.FilledLabels = []string{"已成交", "Filled"}
	}
	if len(s.TimeLayouts) == 0 {
		s.TimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05"}
	}
}

func (s *Selectors) Validate() error {
	required := map[string]string{
		"side_tab":        s.SideTab,
		"limit_tab":       s.LimitTab,
		"price_input":     s.PriceInput,
		"volume_input":    s.VolumeInput,
		"buy_button":      s.BuyButton,
		"sell_button":     s.SellButton,
		"open_orders_tab": s.OpenOrdersTab,
		"history_tab":     s.HistoryTab,
		"rows":            s.Rows,
		"page_active":     s.PageActive,
	}
	for name, v := range required {
		if v == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}
	for _, c := range s.Columns.all() {
		if c < 0 {
			return errors.New("column indexes must not be negative")
		}
	}
	return nil
}

// MinCells is the smallest cell count a history row needs to be parseable.
func (s *Selectors) MinCells() int {
	max := 0
	for _, c := range s.Columns.all() {
		if c > max {
			max = c
		}
	}
	return max + 1
}
