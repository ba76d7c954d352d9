package ops

import (
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"ctpbridge/internal/gateway"
	"ctpbridge/internal/native/sim"
	"ctpbridge/internal/relay"
	"ctpbridge/internal/schema"
	"ctpbridge/internal/session"
	"ctpbridge/pkg/conn"
	"ctpbridge/pkg/exception"
)

const (
	EngineSim    = "sim"
	EngineCTPAPI = "ctpapi"

	defaultFront       = "tcp://127.0.0.1:41205"
	defaultFlowPath    = "flow"
	defaultBusCapacity = 4096
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Engine        EngineConfig    `json:"engine"`
	Account       AccountConfig   `json:"account"`
	Relay         RelayConfig     `json:"relay"`
	Subscriptions []string        `json:"subscriptions"`
	ForQuote      []string        `json:"forQuote"`
	AutoLogin     *bool           `json:"autoLogin"`
	Bus           BusConfig       `json:"bus"`
	Store         StoreConfig     `json:"store"`
	Pyroscope     PyroscopeConfig `json:"pyroscope"`
}

// EngineConfig selects the native engine.
type EngineConfig struct {
	// Kind is "sim" or "ctpapi". Defaults to sim.
	Kind     string    `json:"kind"`
	Front    string    `json:"front"`
	FlowPath string    `json:"flowPath"`
	Sim      SimConfig `json:"sim"`
}

// SimConfig tunes the simulator.
type SimConfig struct {
	Workers         int                       `json:"workers"`
	TradingDay      string                    `json:"tradingDay"`
	FillOrders      bool                      `json:"fillOrders"`
	QueryIntervalMs int                       `json:"queryIntervalMs"`
	Positions       []schema.InvestorPosition `json:"positions"`
	Account         schema.TradingAccount     `json:"account"`
}

// AccountConfig holds login credentials.
type AccountConfig struct {
	BrokerID   string `json:"brokerId"`
	UserID     string `json:"userId"`
	Password   string `json:"password"`
	InvestorID string `json:"investorId"`
}

// RelayConfig narrows the bound events and sets the attach policy. Event
// names accept either the kind name or the handler method name.
type RelayConfig struct {
	Events       []string `json:"events"`
	Required     []string `json:"required"`
	AttachPolicy string   `json:"attachPolicy"`
	AttachLimit  int      `json:"attachLimit"`
}

// BusConfig sizes the event queue.
type BusConfig struct {
	Capacity int `json:"capacity"`
}

// StoreConfig enables trade persistence.
type StoreConfig struct {
	Enabled    bool              `json:"enabled"`
	Host       string            `json:"host"`
	Port       int               `json:"port"`
	User       string            `json:"user"`
	Password   string            `json:"password"`
	Database   string            `json:"database"`
	SSLMode    string            `json:"sslMode"`
	Params     map[string]string `json:"params"`
	ConnString string            `json:"connString"`
}

// PyroscopeConfig enables continuous profiling.
type PyroscopeConfig struct {
	Address     string `json:"address"`
	Application string `json:"application"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	EngineKind string
	Sim        sim.Config
	Session    session.Options
	Gateway    gateway.Config
	Attach     relay.AttachPolicy
	// AttachLimit caps pinned threads under the stay policy. Zero is
	// unlimited.
	AttachLimit int
	BusCapacity int
	// Store is nil when persistence is disabled.
	Store     *conn.Option
	Pyroscope PyroscopeConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse resolves a JSON config document.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	return Resolve(cfg)
}

// Resolve validates cfg and fills defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Engine.Kind))
	switch kind {
	case "":
		kind = EngineSim
	case EngineSim, EngineCTPAPI:
	default:
		return Loaded{}, errors.Wrapf(exception.ErrInvalidArgument, "engine kind: %s", cfg.Engine.Kind)
	}
	if cfg.Account.BrokerID == "" || cfg.Account.UserID == "" {
		return Loaded{}, errors.Wrap(exception.ErrInvalidArgument, "account brokerId and userId are required")
	}

	enabled, err := parseKinds(cfg.Relay.Events)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "relay events")
	}
	required, err := parseKinds(cfg.Relay.Required)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "relay required")
	}
	policy, err := relay.ParseAttachPolicy(cfg.Relay.AttachPolicy)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Relay.AttachLimit < 0 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidArgument, "attach limit: %d", cfg.Relay.AttachLimit)
	}

	front := cfg.Engine.Front
	if front == "" {
		front = defaultFront
	}
	flowPath := cfg.Engine.FlowPath
	if flowPath == "" {
		flowPath = defaultFlowPath
	}
	capacity := cfg.Bus.Capacity
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	autoLogin := true
	if cfg.AutoLogin != nil {
		autoLogin = *cfg.AutoLogin
	}

	loaded := Loaded{
		EngineKind: kind,
		Sim: sim.Config{
			Workers:       cfg.Engine.Sim.Workers,
			BrokerID:      cfg.Account.BrokerID,
			UserID:        cfg.Account.UserID,
			Password:      cfg.Account.Password,
			TradingDay:    cfg.Engine.Sim.TradingDay,
			FillOrders:    cfg.Engine.Sim.FillOrders,
			QueryInterval: time.Duration(cfg.Engine.Sim.QueryIntervalMs) * time.Millisecond,
			Positions:     cfg.Engine.Sim.Positions,
			Account:       cfg.Engine.Sim.Account,
		},
		Session: session.Options{
			FrontAddr:  front,
			FlowPath:   flowPath,
			BrokerID:   cfg.Account.BrokerID,
			UserID:     cfg.Account.UserID,
			Password:   cfg.Account.Password,
			InvestorID: cfg.Account.InvestorID,
			Table:      relay.TableOptions{Enabled: enabled, Required: required},
		},
		Gateway: gateway.Config{
			AutoLogin:   autoLogin,
			Instruments: cfg.Subscriptions,
			ForQuote:    cfg.ForQuote,
		},
		Attach:      policy,
		AttachLimit: cfg.Relay.AttachLimit,
		BusCapacity: capacity,
		Pyroscope:   cfg.Pyroscope,
	}
	if cfg.Store.Enabled {
		loaded.Store = &conn.Option{
			Host:       cfg.Store.Host,
			Port:       cfg.Store.Port,
			User:       cfg.Store.User,
			Password:   cfg.Store.Password,
			Database:   cfg.Store.Database,
			SSLMode:    cfg.Store.SSLMode,
			Params:     cfg.Store.Params,
			ConnString: cfg.Store.ConnString,
		}
	}
	return loaded, nil
}

// parseKinds keeps nil for an absent list so the relay defaults apply.
func parseKinds(names []string) ([]schema.EventKind, error) {
	if names == nil {
		return nil, nil
	}
	kinds := make([]schema.EventKind, 0, len(names))
	for _, name := range names {
		kind, ok := schema.ParseEventKind(strings.TrimSpace(name))
		if !ok {
			return nil, errors.Wrapf(exception.ErrInvalidArgument, "unknown event: %s", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
