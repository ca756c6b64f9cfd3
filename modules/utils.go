package modules

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	probing "github.com/prometheus-community/pro-bing"
)

func Ping(addr string) (bool, error) {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return false, fmt.Errorf("error creating new pinger: %w", err)
	}
	pinger.Count = 3
	pinger.Interval = 167 * time.Millisecond
	pinger.Timeout = 500 * time.Millisecond
	pinger.OnRecv = func(pkt *probing.Packet) {
		pinger.Stop()
	}
	err = pinger.Run()
	if err != nil {
		return false, fmt.Errorf("error sending ping: %w", err)
	}
	return pinger.PacketsRecv > 0, nil
}

// Validate decodes a module configuration section into output and validates
// it. Fields absent from input keep the value already set in output.
func Validate[T any](input map[string]interface{}, output *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("error creating decoder: %w", err)
	}
	err = decoder.Decode(input)
	if err != nil {
		return fmt.Errorf("input decoding error: %w", err)
	}
	validate := validator.New()
	err = validate.Struct(output)
	if err != nil {
		return fmt.Errorf("error validating structure fields: %w", err)
	}
	return nil
}

// Seconds converts a floating point number of seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
