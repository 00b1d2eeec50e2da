package voice

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// CommandSpeaker speaks by running an external synthesizer such as espeak-ng
// with the phrase as its last argument.
type CommandSpeaker struct {
	Command string
	Args    []string
}

// Say runs the command and waits for it to finish.
func (c CommandSpeaker) Say(ctx context.Context, text string) error {
	if c.Command == "" {
		return errors.New("no speech command configured")
	}
	args := append(append([]string(nil), c.Args...), text)
	out, err := exec.CommandContext(ctx, c.Command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", c.Command, err, out)
	}
	return nil
}

// SpeakerFunc adapts a function to the Speaker interface.
type SpeakerFunc func(ctx context.Context, text string) error

func (f SpeakerFunc) Say(ctx context.Context, text string) error { return f(ctx, text) }

// MultiSpeaker says every phrase through each speaker in order and joins
// their errors.
type MultiSpeaker []Speaker

func (m MultiSpeaker) Say(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Say(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
