package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// stdout is where command results go; the root command points it at its
// configured output writer
var stdout io.Writer = os.Stdout

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format, w: stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case Status:
		o.printStatus(v)
	case []Element:
		o.printElements(v)
	case TxResult:
		o.printTxResult(v)
	case TxStatus:
		o.printTxStatus(v)
	case []TxStatus:
		for _, tx := range v {
			o.printTxStatus(tx)
		}
	case Quote:
		o.printQuote(v)
	case QuoteList:
		if len(v.Quotes) == 0 {
			fmt.Fprintln(o.w, "No quotes")
		}
		for _, q := range v.Quotes {
			o.printQuote(q)
		}
	case QuoteStats:
		fmt.Fprintf(o.w, "Pending: %d  Approved: %d  Rejected: %d  Total: %d\n",
			v.Pending, v.Approved, v.Rejected, v.Total)
	case BulkDeleteResult:
		fmt.Fprintf(o.w, "Deleted %d quotes\n", v.Deleted)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	Address     string     `json:"address"`
	Registered  bool       `json:"registered"`
	Experience  uint64     `json:"experience"`
	Streak      uint64     `json:"streak"`
	BaseLevel   uint8      `json:"base_level"`
	LastCheckIn *time.Time `json:"last_check_in"`
}

// Element response type
type Element struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Rarity   string    `json:"rarity"`
	Level    uint8     `json:"level"`
	Power    uint64    `json:"power"`
	Special  bool      `json:"special,omitempty"`
	MintedAt time.Time `json:"minted_at"`
}

// AuthResult is the sign-in response
type AuthResult struct {
	Address      string    `json:"address"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsAdmin      bool      `json:"is_admin"`
}

// Challenge is the message the wallet signs
type Challenge struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Status is the signed-in player's dashboard
type Status struct {
	Player            Player     `json:"player"`
	Elements          []Element  `json:"elements"`
	CanCheckIn        bool       `json:"can_check_in"`
	NextCheckIn       *time.Time `json:"next_check_in,omitempty"`
	HoursUntilCheckIn int64      `json:"hours_until_check_in"`
	LevelUpThreshold  uint64     `json:"level_up_threshold"`
	CanLevelUp        bool       `json:"can_level_up"`
}

// Fusion response type
type Fusion struct {
	Burned         []string `json:"burned"`
	Minted         Element  `json:"minted"`
	BonusLevel     bool     `json:"bonus_level"`
	RarityUpgraded bool     `json:"rarity_upgraded"`
	SpecialAbility bool     `json:"special_ability"`
}

// TxResult is the response to a contract write
type TxResult struct {
	Hash              string   `json:"hash"`
	Method            string   `json:"method"`
	BlockNumber       uint64   `json:"block_number"`
	Registered        bool     `json:"registered,omitempty"`
	AlreadyRegistered bool     `json:"already_registered,omitempty"`
	Player            *Player  `json:"player,omitempty"`
	Reward            *Element `json:"reward,omitempty"`
	Fusion            *Fusion  `json:"fusion,omitempty"`
}

// TxStatus is a recorded transaction phase
type TxStatus struct {
	Hash        string    `json:"hash"`
	Method      string    `json:"method"`
	Address     string    `json:"address"`
	Phase       string    `json:"phase"`
	Reason      string    `json:"reason,omitempty"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Quote response type
type Quote struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	SubmittedBy string    `json:"submittedBy"`
	Category    string    `json:"category"`
	IsOwnQuote  bool      `json:"isOwnQuote"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// QuoteList response type
type QuoteList struct {
	Quotes []Quote `json:"quotes"`
}

// QuoteStats response type
type QuoteStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// BulkDeleteResult response type
type BulkDeleteResult struct {
	Deleted int `json:"deleted"`
}

// HealthResult response type, plus where and how fast it answered
type HealthResult struct {
	Status    string `json:"status"`
	Server    string `json:"server,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

func (o *Output) printPlayer(p Player) {
	if !p.Registered {
		fmt.Fprintf(o.w, "Player: %s (not registered)\n", p.Address)
		return
	}
	fmt.Fprintf(o.w, "Player: %s\n", p.Address)
	fmt.Fprintf(o.w, "Level: %d  XP: %d  Streak: %d\n", p.BaseLevel, p.Experience, p.Streak)
	if p.LastCheckIn != nil {
		fmt.Fprintf(o.w, "Last check-in: %s\n", p.LastCheckIn.Local().Format(time.DateTime))
	}
}

func (o *Output) printAuthResult(a AuthResult) {
	fmt.Fprintf(o.w, "Signed in as %s", a.Address)
	if a.IsAdmin {
		fmt.Fprint(o.w, " (admin)")
	}
	fmt.Fprintln(o.w)
	fmt.Fprintf(o.w, "Token expires: %s\n", a.ExpiresAt.Local().Format(time.DateTime))
}

func (o *Output) printStatus(s Status) {
	o.printPlayer(s.Player)
	switch {
	case s.CanCheckIn:
		fmt.Fprintln(o.w, "Check-in: available")
	default:
		fmt.Fprintf(o.w, "Check-in: in %d hours\n", s.HoursUntilCheckIn)
	}
	if s.CanLevelUp {
		fmt.Fprintln(o.w, "Level up: ready")
	} else if s.Player.Registered {
		fmt.Fprintf(o.w, "Level up: needs %d XP\n", s.LevelUpThreshold)
	}
	o.printElements(s.Elements)
}

func (o *Output) printElements(els []Element) {
	fmt.Fprintf(o.w, "Elements (%d):\n", len(els))
	for _, e := range els {
		o.printElement(e)
	}
}

func (o *Output) printElement(e Element) {
	special := ""
	if e.Special {
		special = " *special*"
	}
	fmt.Fprintf(o.w, "  %s  %-14s %-9s L%d  power %d%s\n", e.ID, e.Type, e.Rarity, e.Level, e.Power, special)
}

func (o *Output) printTxResult(tx TxResult) {
	if tx.Registered {
		fmt.Fprintln(o.w, "Registered")
	}
	if tx.AlreadyRegistered {
		fmt.Fprintln(o.w, "Already registered")
		return
	}
	fmt.Fprintf(o.w, "%s confirmed in block %d (%s)\n", tx.Method, tx.BlockNumber, tx.Hash)
	if tx.Player != nil {
		fmt.Fprintf(o.w, "Level: %d  XP: %d  Streak: %d\n", tx.Player.BaseLevel, tx.Player.Experience, tx.Player.Streak)
	}
	if tx.Reward != nil {
		fmt.Fprintln(o.w, "Reward:")
		o.printElement(*tx.Reward)
	}
	if f := tx.Fusion; f != nil {
		fmt.Fprintf(o.w, "Fused %s into:\n", strings.Join(f.Burned, ", "))
		o.printElement(f.Minted)
		if f.BonusLevel {
			fmt.Fprintln(o.w, "Bonus level!")
		}
		if f.RarityUpgraded {
			fmt.Fprintln(o.w, "Rarity upgraded!")
		}
		if f.SpecialAbility {
			fmt.Fprintln(o.w, "Special ability unlocked!")
		}
	}
}

func (o *Output) printTxStatus(tx TxStatus) {
	line := fmt.Sprintf("[%s] %-10s %-9s %s", tx.Timestamp.Local().Format(time.DateTime), tx.Method, tx.Phase, tx.Hash)
	if tx.Reason != "" {
		line += ": " + tx.Reason
	}
	fmt.Fprintln(o.w, line)
}

func (o *Output) printQuote(q Quote) {
	own := ""
	if q.IsOwnQuote {
		own = ", own"
	}
	fmt.Fprintf(o.w, "%s [%s, %s%s] %q by %s\n", q.ID, q.Status, q.Category, own, q.Content, q.SubmittedBy)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Server %s status: %s (%dms)\n", h.Server, h.Status, h.LatencyMs)
}
