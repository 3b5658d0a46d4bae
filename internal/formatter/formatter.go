package formatter

import (
	"fmt"
	"strings"

	"github.com/wrongjunior/adminnotify/internal/domain"
	"github.com/wrongjunior/adminnotify/internal/taxonomy"
)

const (
	unknownUser     = "未知用户"
	unknownProduct  = "未知产品"
	defaultCurrency = "USDT"
)

// Builder строит текст уведомления для одного типа события.
// Пустая строка означает, что построить текст не удалось.
type Builder func(payload domain.Payload) string

// Formatter превращает событие в читаемый текст с многоуровневым откатом.
type Formatter struct {
	builders map[string]Builder
}

// New создаёт форматтер с заданным набором построителей.
func New(builders map[string]Builder) *Formatter {
	m := make(map[string]Builder, len(builders))
	for k, v := range builders {
		m[k] = v
	}
	return &Formatter{builders: m}
}

// Default возвращает форматтер со стандартными построителями для всех типов реестра.
func Default() *Formatter {
	return New(defaultBuilders())
}

var std = Default()

// Format форматирует событие стандартным форматтером.
func Format(eventType string, payload domain.Payload, fallback string) string {
	return std.Format(eventType, payload, fallback)
}

// Format перебирает уровни по порядку: построитель типа, fallback,
// строковое поле message, сама строка payload, подпись типа из реестра.
func (f *Formatter) Format(eventType string, payload domain.Payload, fallback string) string {
	if build, ok := f.builders[eventType]; ok {
		if built := build(payload); built != "" {
			return built
		}
	}
	if fallback != "" {
		return fallback
	}
	if msg, ok := payload.Field("message").AsString(); ok && strings.TrimSpace(msg) != "" {
		return msg
	}
	if s, ok := payload.AsString(); ok && s != "" {
		return s
	}
	return taxonomy.Label(eventType)
}

// accessor делает одну попытку извлечь значение из вложенного data или из самого payload.
type accessor func(source, top domain.Payload) domain.Payload

func src(name string) accessor {
	return func(source, _ domain.Payload) domain.Payload { return source.Field(name) }
}

func top(name string) accessor {
	return func(_, top domain.Payload) domain.Payload { return top.Field(name) }
}

// extraction держит пару «источник/верхний уровень» для последовательных попыток.
type extraction struct {
	source domain.Payload
	top    domain.Payload
}

func extract(payload domain.Payload) extraction {
	source := payload
	if data := payload.Field("data"); data.IsObject() {
		source = data
	}
	return extraction{source: source, top: payload}
}

// text возвращает первое «истинное» значение из списка попыток.
func (e extraction) text(fallback string, attempts ...accessor) string {
	for _, attempt := range attempts {
		if v, ok := attempt(e.source, e.top).Text(); ok {
			return v
		}
	}
	return fallback
}

// present возвращает первое присутствующее значение; ноль тоже считается суммой.
func (e extraction) present(attempts ...accessor) (string, bool) {
	for _, attempt := range attempts {
		if v := attempt(e.source, e.top); v.Present() {
			return v.Render(), true
		}
	}
	return "", false
}

func (e extraction) currency() string {
	return e.text(defaultCurrency, src("currency"))
}

func (e extraction) amount() (string, bool) {
	return e.present(src("amount"), top("amount"))
}

var (
	accountUser = []accessor{src("user"), src("nickName"), src("phone"), top("user"), top("nickName"), top("phone")}
	sessionUser = []accessor{src("user"), src("nickName"), src("userId"), src("uid"), top("user"), top("userId")}
	financeUser = []accessor{src("user"), src("nickName"), src("userId"), top("user"), top("userId")}
	supportUser = []accessor{src("nickName"), src("user"), src("phone"), src("uid"), top("user"), top("userId")}
)

// transaction строит текст для денежных событий: с суммой, если она есть.
func transaction(users []accessor, withAmount, withoutAmount string) Builder {
	return func(payload domain.Payload) string {
		e := extract(payload)
		user := e.text(unknownUser, users...)
		if amount, ok := e.amount(); ok {
			return fmt.Sprintf(withAmount, user, amount, e.currency())
		}
		return fmt.Sprintf(withoutAmount, user)
	}
}

func session(users []accessor, layout string) Builder {
	return func(payload domain.Payload) string {
		return fmt.Sprintf(layout, extract(payload).text(unknownUser, users...))
	}
}

func purchase(payload domain.Payload) string {
	e := extract(payload)
	user := e.text(unknownUser, accountUser...)
	product := e.text(unknownProduct, src("productName"), src("product"), top("productName"))
	if amount, ok := e.amount(); ok {
		return fmt.Sprintf("%s 购买了 %s（金额：%s %s）", user, product, amount, e.currency())
	}
	return fmt.Sprintf("%s 购买了 %s", user, product)
}

func defaultBuilders() map[string]Builder {
	return map[string]Builder{
		taxonomy.UserRecharge:         transaction(accountUser, "%s 充值 %s %s", "%s 发起充值"),
		taxonomy.UserWithdrawal:       transaction(accountUser, "%s 提现 %s %s", "%s 发起提现"),
		taxonomy.UserPurchase:         purchase,
		taxonomy.UserConnected:        session(sessionUser, "用户 %s 已上线"),
		taxonomy.UserDisconnected:     session(sessionUser, "用户 %s 已下线"),
		taxonomy.FinancialTransferIn:  transaction(financeUser, "%s 理财转入 %s %s", "%s 发起理财转入"),
		taxonomy.FinancialTransferOut: transaction(financeUser, "%s 理财转出 %s %s", "%s 发起理财转出"),
		taxonomy.ContactSupport:       session(supportUser, "%s 请求人工客服支援"),
	}
}
