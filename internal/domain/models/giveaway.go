package models

type GiveawayMode string

const (
	GiveawayModeNumbers GiveawayMode = "NUMBERS"
	GiveawayModeList    GiveawayMode = "LIST"
)

type GiveawayPhase string

const (
	GiveawayPhaseIdle     GiveawayPhase = "IDLE"
	GiveawayPhasePrepared GiveawayPhase = "PREPARED"
	GiveawayPhaseRunning  GiveawayPhase = "RUNNING"
)

// GiveawayConfig - параметры розыгрыша. Min/Max используются в режиме NUMBERS, Items - в режиме LIST.
type GiveawayConfig struct {
	Mode        GiveawayMode `json:"mode" validate:"required,oneof=NUMBERS LIST"`
	Quantity    int          `json:"quantity" validate:"gte=1,lte=10000"`
	Min         int64        `json:"min"`
	Max         int64        `json:"max"`
	Items       []string     `json:"items,omitempty" validate:"max=10000,dive,required,max=200"`
	AllowRepeat bool         `json:"allow_repeat"`
	SortResults bool         `json:"sort_results"`
	// Countdown - секунды анимации на проекторе, на выбор победителей не влияет
	Countdown int    `json:"countdown" validate:"gte=0,lte=60"`
	Prize     string `json:"prize" validate:"max=200"`
}

// Clone копирует конфиг вместе со списком вариантов
func (c GiveawayConfig) Clone() GiveawayConfig {
	if c.Items != nil {
		c.Items = append([]string(nil), c.Items...)
	}

	return c
}

type Winner struct {
	Value       string `json:"value"`
	SourceIndex int64  `json:"source_index"`
}

type GiveawayResult struct {
	Mode    GiveawayMode `json:"mode"`
	Prize   string       `json:"prize"`
	Winners []Winner     `json:"winners"`
}
