package models

// Requests accepted by the HTTP API, the job consumer and the CLI.
// Dates use DateLayout; an empty End means today.

type PriceRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,symbol"`
	Start  string `query:"start" json:"start" default:"2020-01-01" validate:"datetime=2006-01-02"`
	End    string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
}

type SimulateRequest struct {
	Symbol string `json:"symbol" default:"SPY" validate:"required,symbol"`
	Start  string `json:"start" default:"2020-01-01" validate:"datetime=2006-01-02"`
	End    string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Days   int    `json:"days" default:"252" validate:"gte=1,lte=5000"`
	Paths  int    `json:"paths" default:"5000" validate:"gte=1,lte=200000"`
	Seed   int64  `json:"seed"`
}

type CompareRequest struct {
	Symbol1 string `json:"symbol1" default:"SPY" validate:"required,symbol"`
	Symbol2 string `json:"symbol2" default:"SPY" validate:"required,symbol"`
	Start   string `json:"start" default:"2020-01-01" validate:"datetime=2006-01-02"`
	End     string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Days    int    `json:"days" default:"252" validate:"gte=1,lte=5000"`
	Paths   int    `json:"paths" default:"5000" validate:"gte=1,lte=200000"`
	Seed    int64  `json:"seed"`
}

type StatArbRequest struct {
	Symbol1       string  `json:"symbol1" validate:"required,symbol"`
	Symbol2       string  `json:"symbol2" validate:"required,symbol,nefield=Symbol1"`
	Start         string  `json:"start" default:"2020-01-01" validate:"datetime=2006-01-02"`
	End           string  `json:"end" validate:"omitempty,datetime=2006-01-02"`
	WindowSize    int     `json:"window_size" default:"20" validate:"gte=1,lte=1000"`
	Multiplier    float64 `json:"multiplier" default:"2" validate:"gt=0"`
	StdMultiplier int     `json:"std_multiplier" default:"1" validate:"gte=1,lte=50"`
}

type PredictRequest struct {
	Symbol     string   `json:"symbol" default:"SPY" validate:"required,symbol"`
	Start      string   `json:"start" default:"2020-01-01" validate:"datetime=2006-01-02"`
	End        string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Features   []string `json:"features" default:"[\"rsi\",\"macd\",\"pctfrom100ma\",\"prevreturn\"]" validate:"min=1,dive,required"`
	Shift      int      `json:"shift" default:"1" validate:"gte=1,lte=250"`
	Estimators int      `json:"estimators" default:"100" validate:"gte=1,lte=1000"`
	Threshold  float64  `json:"threshold" default:"0.5" validate:"gte=0,lte=1"`
}
