package notify

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dogao/order-service/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const brand = "🌭 *Dogão do Pastor* 🌭"

var printer = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount the way it is written in Brazil, e.g.
// "R$ 1.234,50". Cents come from the decimal itself, never from a float.
func FormatBRL(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, cents, _ := strings.Cut(fixed, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return "R$ " + sign + whole + "," + cents
	}
	return printer.Sprintf("R$ %s%v,%s", sign, number.Decimal(units), cents)
}

// FormatDate turns an ISO date into dd/mm/yyyy, leaving unparsable input as is.
func FormatDate(isoDate string) string {
	d, err := time.Parse(models.DateLayout, isoDate)
	if err != nil {
		return isoDate
	}
	return d.Format("02/01/2006")
}

func MapsLink(address string) string {
	return "https://maps.google.com/?q=" + url.QueryEscape(address)
}

// Welcome is sent after a customer validates a voucher. When production is
// open it carries pickup instructions and announces the closing reminder sent
// reminderLead ahead, otherwise it asks the customer to keep the voucher for
// the next edition.
func Welcome(name string, edition models.Edition, pickup Location, productionOpen bool, reminderLead time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nOlá %s! Seu voucher foi validado com sucesso!\n\n", brand, name)
	if productionOpen {
		b.WriteString("📍 *Instruções para retirada:*\n")
		fmt.Fprintf(&b, "• Local: %s\n", pickup.Name)
		fmt.Fprintf(&b, "• Endereço: %s\n", pickup.Address)
		fmt.Fprintf(&b, "• Data: %s\n", FormatDate(edition.ProductionDate))
		fmt.Fprintf(&b, "• Horário: Até às %s\n", edition.ClosingTime)
		b.WriteString("• Apresente este voucher no local\n\n")
		fmt.Fprintf(&b, "⚠️ *Importante:* Você receberá um lembrete %s antes do fechamento.\n\n", leadText(reminderLead))
	} else {
		b.WriteString("⚠️ *Produção Encerrada*\n\n")
		b.WriteString("A produção de hoje já foi encerrada, mas não se preocupe!\n")
		b.WriteString("Guarde seu voucher para usar na próxima edição.\n")
		b.WriteString("Você receberá a data da próxima edição em breve.\n\n")
	}
	b.WriteString("Deus abençoe! 🙏")
	return b.String()
}

// leadText renders a reminder lead in Portuguese, e.g. "1 hora" or "30 minutos".
func leadText(d time.Duration) string {
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	switch {
	case minutes == 0 && hours == 1:
		return "1 hora"
	case minutes == 0:
		return fmt.Sprintf("%d horas", hours)
	case hours == 0 && minutes == 1:
		return "1 minuto"
	case hours == 0:
		return fmt.Sprintf("%d minutos", minutes)
	default:
		return fmt.Sprintf("%dh%02d", hours, minutes)
	}
}

func PurchaseConfirmation(order models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nOlá %s!\n\nSeu pedido #%s foi realizado com sucesso!\n\n", brand, order.CustomerName, order.OrderNumber)
	b.WriteString("📋 *Detalhes do Pedido:*\n")
	fmt.Fprintf(&b, "• Quantidade: %dx Dogão do Pastor\n", order.Quantity())
	fmt.Fprintf(&b, "• Valor Total: %s\n\n", FormatBRL(order.TotalValue))
	if order.IsTelevendas {
		b.WriteString("🚚 *Entrega:*\nSeu pedido será entregue em sua casa.\nPrevisão: 15 a 40 minutos\n\n")
		b.WriteString("Você receberá uma mensagem quando o pedido sair para entrega.\n\n")
	} else {
		b.WriteString("⏰ *Próximos Passos:*\nEm breve você será chamado pelo nome na recepção para retirar seu pedido.\n\n")
	}
	b.WriteString("Obrigado pela preferência! 🙏")
	return b.String()
}

func VoucherRedeemed(name, orderNumber string) string {
	return fmt.Sprintf("%s\n\nOlá %s!\n\nSeu voucher foi resgatado com sucesso! Pedido #%s.\n\n"+
		"⏰ *Próximos Passos:*\nEm breve você será chamado pelo nome na recepção para retirar seu dogão.\n\nObrigado! 🙏",
		brand, name, orderNumber)
}

func DeliveryDispatch(order models.Order, courierName string) string {
	return fmt.Sprintf("🚚 *Dogão do Pastor - Entrega* 🚚\n\nOlá %s!\n\nSeu pedido #%s saiu para entrega!\n\n"+
		"👤 *Entregador:* %s\n⏰ *Previsão:* 15 a 40 minutos\n\nEm breve você receberá seu pedido!\n\nObrigado! 🙏",
		order.CustomerName, order.OrderNumber, courierName)
}

func DeliveryInstructions(orders []models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚚 *Dogão do Pastor - Entregas* 🚚\n\nVocê tem %d entrega(s) para fazer:\n\n", len(orders))
	for _, order := range orders {
		fmt.Fprintf(&b, "📦 *Pedido #%s*\n", order.OrderNumber)
		fmt.Fprintf(&b, "👤 Cliente: %s\n", order.CustomerName)
		fmt.Fprintf(&b, "📞 Telefone: %s\n", order.CustomerPhone)
		fmt.Fprintf(&b, "📍 Endereço: %s\n", order.CustomerAddress)
		fmt.Fprintf(&b, "🗺️ Maps: %s\n\n", MapsLink(order.CustomerAddress))
	}
	b.WriteString("Boa entrega! 🙏")
	return b.String()
}

func DeliveryPersonWelcome(name string) string {
	return fmt.Sprintf("🚚 *Dogão do Pastor - Cadastro de Entregador* 🚚\n\nOlá %s, você foi cadastrado como entregador em nossa plataforma.\n\n"+
		"Quando uma nova rota for atribuída você receberá em seu WhatsApp os dados de suas entregas.\n\nBoas entregas! 🙏", name)
}

// ClosingReminder nudges a customer holding a validated voucher that the
// kitchen closes soon.
func ClosingReminder(name, voucherCode string, edition models.Edition, pickup Location) string {
	return fmt.Sprintf("%s\n\nOlá %s! Falta pouco para o fechamento da produção de hoje.\n\n"+
		"🎟️ Voucher: %s\n⏰ Retirada até às %s\n📍 %s - %s\n\nTe esperamos! 🙏",
		brand, name, voucherCode, edition.ClosingTime, pickup.Name, pickup.Address)
}
