package taxonomy

import "testing"

func TestRegisteredTypesResolve(t *testing.T) {
	for _, d := range Definitions() {
		if got := Label(d.ID); got != d.Label {
			t.Errorf("%s: label %q, ожидалось %q", d.ID, got, d.Label)
		}
		if got := ShortLabel(d.ID); got != d.ShortLabel {
			t.Errorf("%s: short label %q, ожидалось %q", d.ID, got, d.ShortLabel)
		}
		if got := Speech(d.ID, "резерв"); got != d.Speech {
			t.Errorf("%s: speech %q, ожидалось %q", d.ID, got, d.Speech)
		}
	}
}

func TestUnknownTypeDefaults(t *testing.T) {
	for _, typ := range []string{"", "UNKNOWN", "user_recharge"} {
		if got := Label(typ); got != DefaultLabel {
			t.Errorf("%q: label %q", typ, got)
		}
		if got := ShortLabel(typ); got != DefaultShortLabel {
			t.Errorf("%q: short label %q", typ, got)
		}
		if got := Speech(typ, ""); got != DefaultSpeech {
			t.Errorf("%q: speech %q", typ, got)
		}
		if cue, ok := AudioCue(typ); ok || cue != "" {
			t.Errorf("%q: неожиданный звуковой сигнал %q", typ, cue)
		}
	}
}

func TestSpeechFallbackForUnknownType(t *testing.T) {
	if got := Speech("UNKNOWN", "Alice 充值 5 USDT"); got != "Alice 充值 5 USDT" {
		t.Fatalf("ожидался fallback, получено %q", got)
	}
}

func TestAudioCueOptional(t *testing.T) {
	if cue, ok := AudioCue(UserRecharge); !ok || cue != "audio/notify-recharge.mp3" {
		t.Errorf("USER_RECHARGE: получено %q, %v", cue, ok)
	}
	if _, ok := AudioCue(FinancialTransferIn); ok {
		t.Error("у FINANCIAL_TRANSFER_IN нет звукового сигнала")
	}
}

func TestDefinitionsReturnsCopy(t *testing.T) {
	defs := Definitions()
	if len(defs) != 8 {
		t.Fatalf("ожидалось 8 типов, получено %d", len(defs))
	}
	defs[0].Label = "изменено"
	if Label(defs[0].ID) == "изменено" {
		t.Fatal("реестр не должен меняться через возвращённый срез")
	}
	if _, ok := Lookup(ContactSupport); !ok {
		t.Fatal("CONTACT_SUPPORT должен быть зарегистрирован")
	}
}
