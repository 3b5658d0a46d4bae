package speech

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Базовые параметры espeak-ng, к которым применяются pitch и rate фразы.
const (
	espeakBasePitch = 50
	espeakBaseWPM   = 175
)

// CommandSynthesizer реализует Synthesizer поверх утилиты espeak-ng.
// Список голосов загружается асинхронно в Start; одновременно звучит
// не более одной фразы.
type CommandSynthesizer struct {
	binary string
	logger *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	voices    []Voice
	listeners map[int]func()
	nextID    int
	current   *exec.Cmd
}

// NewCommandSynthesizer проверяет наличие бинарника и создаёт синтезатор.
func NewCommandSynthesizer(binary string, logger *slog.Logger) (*CommandSynthesizer, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("speech binary %q: %w", binary, err)
	}
	return &CommandSynthesizer{
		binary:    path,
		logger:    logger,
		ctx:       context.Background(),
		listeners: make(map[int]func()),
	}, nil
}

// Start запускает загрузку списка голосов.
func (s *CommandSynthesizer) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go func() {
		out, err := exec.CommandContext(ctx, s.binary, "--voices").Output()
		if err != nil {
			s.logger.Error("Failed to list voices", "error", err)
			return
		}
		s.setVoices(parseVoices(string(out)))
	}()
}

func (s *CommandSynthesizer) setVoices(voices []Voice) {
	s.mu.Lock()
	s.voices = voices
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.Info("Voices loaded", "count", len(voices))
	for _, fn := range listeners {
		fn()
	}
}

func (s *CommandSynthesizer) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s *CommandSynthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Cancel прерывает текущую фразу.
func (s *CommandSynthesizer) Cancel() {
	s.mu.Lock()
	cmd := s.current
	s.current = nil
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (s *CommandSynthesizer) Speak(u Utterance) {
	s.mu.Lock()
	cmd := exec.CommandContext(s.ctx, s.binary, utteranceArgs(u)...)
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to start speech", "error", err)
		return
	}
	s.current = cmd
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.current == cmd {
			s.current = nil
		}
		s.mu.Unlock()
		if err != nil {
			s.logger.Debug("Speech process ended", "error", err)
		}
	}()
}

func (s *CommandSynthesizer) OnVoicesChanged(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// utteranceArgs переводит параметры фразы в аргументы espeak-ng.
func utteranceArgs(u Utterance) []string {
	args := make([]string, 0, 8)
	if u.Voice.ID != "" {
		args = append(args, "-v", u.Voice.ID)
	}
	args = append(args,
		"-p", strconv.Itoa(int(espeakBasePitch*u.Pitch)),
		"-s", strconv.Itoa(int(espeakBaseWPM*u.Rate)),
		// Текст приходит с сервера и не должен разбираться как флаг.
		"--", u.Text,
	)
	return args
}

// parseVoices разбирает вывод `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  cmn             --/M      Chinese_(Mandarin) sit/cmn       (zh-cmn 5)(zh 5)
func parseVoices(out string) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		v := Voice{ID: fields[1], Name: fields[3], Lang: fields[1]}
		if !strings.HasPrefix(strings.ToLower(v.Lang), "zh") {
			for _, other := range fields[5:] {
				if strings.HasPrefix(other, "(zh") {
					v.Lang = strings.TrimPrefix(other, "(")
					break
				}
			}
		}
		voices = append(voices, v)
	}
	return voices
}
