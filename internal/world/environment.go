package world

import (
	"fmt"

	"github.com/brickd-project/brickd/internal/protocol"
)

// Weather is the sky effect.
type Weather string

const (
	WeatherSun  Weather = "sun"
	WeatherRain Weather = "rain"
	WeatherSnow Weather = "snow"
)

// ErrInvalidWeather is returned for an unknown weather name.
var ErrInvalidWeather = fmt.Errorf("invalid weather type (options: %s, %s, %s)", WeatherSun, WeatherRain, WeatherSnow)

// ParseWeather validates a weather name.
func ParseWeather(s string) (Weather, error) {
	switch w := Weather(s); w {
	case WeatherSun, WeatherRain, WeatherSnow:
		return w, nil
	}
	return "", ErrInvalidWeather
}

func (w Weather) keyword() string {
	switch w {
	case WeatherSnow:
		return "WeatherSnow"
	case WeatherRain:
		return "WeatherRain"
	case WeatherSun:
		return "WeatherSun"
	}
	return ""
}

// Environment is the global look of the map.
type Environment struct {
	Ambient      string  `json:"ambient"`
	SkyColor     string  `json:"sky_color"`
	BaseColor    string  `json:"base_color"`
	BaseSize     uint32  `json:"base_size"`
	SunIntensity uint32  `json:"sun_intensity"`
	Weather      Weather `json:"weather"`
}

// DefaultEnvironment returns the environment of a new map.
func DefaultEnvironment() Environment {
	return Environment{
		Ambient:      "#000000",
		SkyColor:     "#71b1e6",
		BaseColor:    "#248233",
		BaseSize:     100,
		SunIntensity: 400,
		Weather:      WeatherSun,
	}
}

// EnvironmentPatch changes some environment properties. Nil fields are
// left alone.
type EnvironmentPatch struct {
	Ambient      *string
	SkyColor     *string
	BaseColor    *string
	BaseSize     *uint32
	SunIntensity *uint32
	Weather      *Weather
}

// Patch returns a patch that sets every property of e.
func (e Environment) Patch() EnvironmentPatch {
	return EnvironmentPatch{
		Ambient:      &e.Ambient,
		SkyColor:     &e.SkyColor,
		BaseColor:    &e.BaseColor,
		BaseSize:     &e.BaseSize,
		SunIntensity: &e.SunIntensity,
		Weather:      &e.Weather,
	}
}

// packets validates the patch and encodes one packet per set property, in
// the fixed order ambient, sky, base colour, base size, sun, weather.
func (patch EnvironmentPatch) packets() ([]*protocol.PacketWriter, error) {
	var out []*protocol.PacketWriter
	if patch.Ambient != nil {
		out = append(out, protocol.BuildEnvironmentValue(protocol.EnvAmbient, protocol.HexToDec(*patch.Ambient, true)))
	}
	if patch.SkyColor != nil {
		out = append(out, protocol.BuildEnvironmentValue(protocol.EnvSky, protocol.HexToDec(*patch.SkyColor, false)))
	}
	if patch.BaseColor != nil {
		out = append(out, protocol.BuildEnvironmentValue(protocol.EnvBaseCol, protocol.HexToDec(*patch.BaseColor, true)))
	}
	if patch.BaseSize != nil {
		out = append(out, protocol.BuildEnvironmentValue(protocol.EnvBaseSize, *patch.BaseSize))
	}
	if patch.SunIntensity != nil {
		out = append(out, protocol.BuildEnvironmentValue(protocol.EnvSun, *patch.SunIntensity))
	}
	if patch.Weather != nil {
		kw := patch.Weather.keyword()
		if kw == "" {
			return nil, ErrInvalidWeather
		}
		out = append(out, protocol.BuildWeather(kw))
	}
	return out, nil
}

func (e *Environment) apply(patch EnvironmentPatch) {
	if patch.Ambient != nil {
		e.Ambient = *patch.Ambient
	}
	if patch.SkyColor != nil {
		e.SkyColor = *patch.SkyColor
	}
	if patch.BaseColor != nil {
		e.BaseColor = *patch.BaseColor
	}
	if patch.BaseSize != nil {
		e.BaseSize = *patch.BaseSize
	}
	if patch.SunIntensity != nil {
		e.SunIntensity = *patch.SunIntensity
	}
	if patch.Weather != nil {
		e.Weather = *patch.Weather
	}
}

// SetEnvironment changes the environment for everyone.
func (w *World) SetEnvironment(patch EnvironmentPatch) error {
	return w.applyEnvironment(patch, nil)
}

// applyEnvironment sends the patch to target, or to everyone and records
// it when target is nil. Nothing is sent or stored if the patch is invalid.
func (w *World) applyEnvironment(patch EnvironmentPatch, target *Player) error {
	packets, err := patch.packets()
	if err != nil {
		return err
	}
	if target == nil {
		w.env.apply(patch)
	}
	for _, pw := range packets {
		if target != nil {
			target.send(pw)
		} else {
			w.broadcast(pw)
		}
	}
	return nil
}
