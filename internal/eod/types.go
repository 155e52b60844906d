package eod

var csvHeader = []string{"time", "side", "filled_volume", "price", "total_value", "status"}

// Labels in the first column of the summary rows.
const (
	rowTotal    = "TOTAL"
	rowWearLoss = "WEAR_LOSS"
	rowPoints   = "POINTS_VOLUME"
)
