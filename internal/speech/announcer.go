package speech

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/wrongjunior/adminnotify/internal/taxonomy"
)

const (
	defaultLang = "zh-CN"
	pitch       = 1.0
	rate        = 0.95
)

// Voice описывает голос, доступный синтезатору.
type Voice struct {
	ID   string // идентификатор голоса в терминах синтезатора
	Name string
	Lang string
}

// Utterance описывает одну фразу для произнесения.
type Utterance struct {
	Text  string
	Lang  string
	Voice Voice
	Pitch float64
	Rate  float64
}

// Synthesizer абстрагирует внешний синтез речи.
// Список голосов может появиться не сразу; о его готовности синтезатор
// сообщает через OnVoicesChanged.
type Synthesizer interface {
	Voices() []Voice
	Speaking() bool
	Cancel()
	Speak(u Utterance)
	// OnVoicesChanged регистрирует обработчик и возвращает функцию его снятия.
	// Обработчик не должен вызываться синхронно внутри OnVoicesChanged.
	OnVoicesChanged(fn func()) (remove func())
}

type pending struct {
	eventType string
	fallback  string
}

// Announcer озвучивает уведомления. Голос выбирается один раз за время жизни
// процесса; пока голосов нет, зарегистрирован не более чем один обработчик
// OnVoicesChanged, и он хранит последнее неозвученное уведомление.
type Announcer struct {
	synth  Synthesizer
	logger *slog.Logger

	mu      sync.Mutex
	voice   *Voice
	waiting *pending
	remove  func()
}

// NewAnnouncer создаёт диктора. При synth == nil все вызовы Announce ничего не делают.
func NewAnnouncer(synth Synthesizer, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{synth: synth, logger: logger}
}

// Announce произносит фразу для типа события; fallback используется для
// незарегистрированных типов.
func (a *Announcer) Announce(eventType, fallback string) {
	if a == nil || a.synth == nil {
		return
	}

	a.mu.Lock()
	if a.voice == nil {
		if v, ok := pickVoice(a.synth.Voices()); ok {
			a.voice = &v
		}
	}
	if a.voice == nil {
		a.waiting = &pending{eventType: eventType, fallback: fallback}
		if a.remove == nil {
			a.remove = a.synth.OnVoicesChanged(a.voicesChanged)
			a.logger.Debug("Voice list not ready, deferring announcement", "type", eventType)
		}
		a.mu.Unlock()
		return
	}
	voice := *a.voice
	a.mu.Unlock()

	a.speak(voice, taxonomy.Speech(eventType, fallback))
}

// Ready сообщает, выбран ли уже голос.
func (a *Announcer) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.voice != nil
}

func (a *Announcer) voicesChanged() {
	a.mu.Lock()
	if a.voice != nil {
		a.mu.Unlock()
		return
	}
	v, ok := pickVoice(a.synth.Voices())
	if !ok {
		a.mu.Unlock()
		return
	}
	a.voice = &v
	remove := a.remove
	a.remove = nil
	next := a.waiting
	a.waiting = nil
	a.mu.Unlock()

	if remove != nil {
		remove()
	}
	a.logger.Debug("Voice selected", "name", v.Name, "lang", v.Lang)
	if next != nil {
		a.Announce(next.eventType, next.fallback)
	}
}

func (a *Announcer) speak(voice Voice, text string) {
	lang := voice.Lang
	if lang == "" {
		lang = defaultLang
	}
	if a.synth.Speaking() {
		a.synth.Cancel()
	}
	a.synth.Speak(Utterance{
		Text:  text,
		Lang:  lang,
		Voice: voice,
		Pitch: pitch,
		Rate:  rate,
	})
}

// pickVoice выбирает первый китайский голос, иначе первый доступный.
func pickVoice(voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "zh") {
			return v, true
		}
	}
	return voices[0], true
}
