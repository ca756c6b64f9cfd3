package wakeonlan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules"
	"github.com/tr4cks/atx-power/modules/aio"

	"github.com/linde12/gowol"
)

// WakeOnLanModule powers a host on with a magic packet and reports it as
// powered while it answers to ping.
type WakeOnLanModule struct {
	modules.DefaultModule
	Config WakeOnLanConfig

	logger   zerolog.Logger
	ping     func(addr string) (bool, error)
	wake     func(mac string) error
	notifier *aio.Notifier
	region   *aio.Region

	mu      sync.RWMutex
	powered bool
}

type WakeOnLanConfig struct {
	Hostname     string  `mapstructure:"hostname" validate:"required"`
	Mac          string  `mapstructure:"mac" validate:"required,mac"`
	Broadcast    string  `mapstructure:"broadcast" validate:"required,ip4_addr"`
	PingInterval float64 `mapstructure:"ping_interval" validate:"gt=0"`
}

func New(logger zerolog.Logger) modules.Module {
	notifier := aio.NewNotifier()
	m := &WakeOnLanModule{
		Config: WakeOnLanConfig{
			Broadcast:    "255.255.255.255",
			PingInterval: 5,
		},
		logger:   logger.With().Str("scope", "wol").Logger(),
		ping:     modules.Ping,
		notifier: notifier,
		region:   aio.NewRegion(modules.ErrBusy, notifier),
	}
	m.wake = m.sendMagicPacket
	return m
}

func (m *WakeOnLanModule) Init(config map[string]interface{}) error {
	err := modules.Validate(config, &m.Config)
	if err != nil {
		return fmt.Errorf("error validating %q module configuration: %w", "wol", err)
	}
	return nil
}

// Prepare checks the host once so that the first state is meaningful.
func (m *WakeOnLanModule) Prepare() error {
	m.refresh()
	return nil
}

func (m *WakeOnLanModule) State() modules.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return modules.State{
		Enabled: true,
		Busy:    m.region.IsBusy(),
		Leds:    modules.Leds{Power: m.powered},
	}
}

func (m *WakeOnLanModule) PollStates() *aio.Stream[modules.State] {
	return aio.NewStream(m.notifier, m.State)
}

func (m *WakeOnLanModule) Systask(ctx context.Context) error {
	ticker := time.NewTicker(modules.Seconds(m.Config.PingInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.refresh()
		}
	}
}

func (m *WakeOnLanModule) refresh() {
	powered, err := m.ping(m.Config.Hostname)
	if err != nil {
		m.logger.Error().Err(err).Str("hostname", m.Config.Hostname).Msg("Failed to ping the host")
		return
	}

	m.mu.Lock()
	changed := m.powered != powered
	m.powered = powered
	m.mu.Unlock()

	if changed {
		m.logger.Info().Bool("powered", powered).Msg("Host power state changed")
		m.notifier.Notify()
	}
}

// PowerOn sends a magic packet if the host does not answer. The packet is
// sent synchronously whatever wait is: there is nothing to hold.
func (m *WakeOnLanModule) PowerOn(ctx context.Context, wait bool) error {
	if m.State().Leds.Power {
		return nil
	}
	return m.ClickPower(ctx, wait)
}

func (m *WakeOnLanModule) ClickPower(ctx context.Context, wait bool) error {
	var release func()
	var err error
	if wait {
		release, err = m.region.EnterBlocking(ctx)
	} else {
		release, err = m.region.EnterImmediate()
	}
	if err != nil {
		return err
	}
	defer release()

	err = m.wake(m.Config.Mac)
	if err != nil {
		return err
	}
	m.logger.Info().Str("mac", m.Config.Mac).Msg("Magic packet sent")
	return nil
}

func (m *WakeOnLanModule) sendMagicPacket(mac string) error {
	packet, err := gowol.NewMagicPacket(mac)
	if err != nil {
		return fmt.Errorf("error creating the magic packet: %w", err)
	}
	err = packet.Send(m.Config.Broadcast)
	if err != nil {
		return fmt.Errorf("error sending the magic packet: %w", err)
	}
	return nil
}
