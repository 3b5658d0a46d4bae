package taxonomy

// Типы событий, которые присылает сервер уведомлений администратора.
const (
	UserRecharge         = "USER_RECHARGE"
	UserWithdrawal       = "USER_WITHDRAWAL"
	UserPurchase         = "USER_PURCHASE"
	UserConnected        = "USER_CONNECTED"
	UserDisconnected     = "USER_DISCONNECTED"
	FinancialTransferIn  = "FINANCIAL_TRANSFER_IN"
	FinancialTransferOut = "FINANCIAL_TRANSFER_OUT"
	ContactSupport       = "CONTACT_SUPPORT"
)

// Значения по умолчанию для незарегистрированных типов.
const (
	DefaultLabel      = "事件通知"
	DefaultShortLabel = "事件"
	DefaultSpeech     = "您有新的通知，请注意查看。"
)

// Definition описывает тип события: подписи, фразу для озвучивания и звуковой сигнал.
type Definition struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	ShortLabel string `json:"shortLabel"`
	Speech     string `json:"speech"`
	AudioCue   string `json:"audioCue,omitempty"` // путь к звуковому файлу, может отсутствовать
}

var definitions = []Definition{
	{ID: UserRecharge, Label: "充值通知", ShortLabel: "充值", Speech: "您有新的充值通知，请注意确认。", AudioCue: "audio/notify-recharge.mp3"},
	{ID: UserWithdrawal, Label: "提现通知", ShortLabel: "提现", Speech: "收到提现提醒，请及时处理。", AudioCue: "audio/notify-withdrawal.mp3"},
	{ID: UserPurchase, Label: "下单通知", ShortLabel: "下单", Speech: "用户下单通知，请及时跟进订单。", AudioCue: "audio/notify-purchase.mp3"},
	{ID: UserConnected, Label: "用户上线", ShortLabel: "上线", Speech: "有用户刚刚上线。", AudioCue: "audio/user-online.mp3"},
	{ID: UserDisconnected, Label: "用户下线", ShortLabel: "下线", Speech: "有用户刚刚下线。", AudioCue: "audio/user-offline.mp3"},
	{ID: FinancialTransferIn, Label: "理财转入", ShortLabel: "转入", Speech: "用户发起理财转入，请尽快审核。"},
	{ID: FinancialTransferOut, Label: "理财转出", ShortLabel: "转出", Speech: "用户发起理财转出，请及时关注。", AudioCue: "audio/financial-transfer-out.mp3"},
	{ID: ContactSupport, Label: "客服请求", ShortLabel: "客服", Speech: "有用户请求人工客服支援。", AudioCue: "audio/contact-support.mp3"},
}

var byID = func() map[string]Definition {
	m := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		if _, dup := m[d.ID]; dup {
			panic("taxonomy: duplicate event type " + d.ID)
		}
		m[d.ID] = d
	}
	return m
}()

// Definitions возвращает копию реестра в порядке регистрации.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup ищет определение по идентификатору типа.
func Lookup(eventType string) (Definition, bool) {
	d, ok := byID[eventType]
	return d, ok
}

// Label возвращает полную подпись типа события.
func Label(eventType string) string {
	if d, ok := byID[eventType]; ok && d.Label != "" {
		return d.Label
	}
	return DefaultLabel
}

// ShortLabel возвращает короткую подпись типа события.
func ShortLabel(eventType string) string {
	if d, ok := byID[eventType]; ok && d.ShortLabel != "" {
		return d.ShortLabel
	}
	return DefaultShortLabel
}

// Speech возвращает фразу для озвучивания: зарегистрированную для типа,
// иначе непустой fallback, иначе фразу по умолчанию.
func Speech(eventType, fallback string) string {
	if d, ok := byID[eventType]; ok && d.Speech != "" {
		return d.Speech
	}
	if fallback != "" {
		return fallback
	}
	return DefaultSpeech
}

// AudioCue возвращает звуковой сигнал типа, если он задан.
func AudioCue(eventType string) (string, bool) {
	if d, ok := byID[eventType]; ok && d.AudioCue != "" {
		return d.AudioCue, true
	}
	return "", false
}
