package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Microphone describes one Pulse input source usable for the audio track.
type Microphone struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// ListMicrophones returns available Pulse input sources with
// default/availability metadata.
func ListMicrophones(_ context.Context) ([]Microphone, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("consentcam"),
		pulse.ClientApplicationIconName("camera-video"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	mics := make([]Microphone, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		mics = append(mics, Microphone{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return mics, nil
}

// ResolveMicrophone matches a configured device name against live sources.
// The names "" and "default" select the server default source.
func ResolveMicrophone(mics []Microphone, want string) (Microphone, error) {
	if len(mics) == 0 {
		return Microphone{}, &DeviceError{Reason: ReasonNotFound, Device: want}
	}

	want = strings.TrimSpace(strings.ToLower(want))
	if want == "" || want == "default" {
		for _, mic := range mics {
			if !mic.Default {
				continue
			}
			if !mic.Available {
				return Microphone{}, &DeviceError{Reason: ReasonBusy, Device: mic.ID}
			}
			return mic, nil
		}
		return Microphone{}, &DeviceError{Reason: ReasonNotFound, Device: "default"}
	}

	for _, mic := range mics {
		if !microphoneMatches(mic, want) {
			continue
		}
		if !mic.Available {
			return Microphone{}, &DeviceError{Reason: ReasonBusy, Device: mic.ID}
		}
		return mic, nil
	}
	return Microphone{}, &DeviceError{Reason: ReasonNotFound, Device: want}
}

// microphoneMatches reports whether a search term matches a source id or
// description.
func microphoneMatches(mic Microphone, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(mic.ID)
	desc := strings.ToLower(mic.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// ListCameras returns V4L2 capture nodes present on the host.
func ListCameras() ([]string, error) {
	nodes, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)
	return nodes, nil
}

// sourceStateString maps Pulse source state constants to human-readable
// values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
