package mail

import (
	"github.com/shopspring/decimal"
)

type VerificationData struct {
	StoreName string
	Name      string
	Link      string
}

func VerificationMessage(to string, data VerificationData) (Message, error) {
	body, err := render("verification.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: data.StoreName + " 信箱驗證", Body: body}, nil
}

type WelcomeData struct {
	StoreName string
	Name      string
	ShopURL   string
}

func WelcomeMessage(to string, data WelcomeData) (Message, error) {
	body, err := render("welcome.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "歡迎加入 " + data.StoreName, Body: body}, nil
}

type OrderLine struct {
	Name      string
	Quantity  int
	LineTotal decimal.Decimal
}

type OrderData struct {
	StoreName    string
	CustomerName string
	OrderNumber  string
	Lines        []OrderLine
	Subtotal     decimal.Decimal
	ShippingFee  decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

func OrderConfirmationMessage(to string, data OrderData) (Message, error) {
	body, err := render("order.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: data.StoreName + " 訂單確認 " + data.OrderNumber, Body: body}, nil
}

type ContactData struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

func ContactNotificationMessage(to string, data ContactData) (Message, error) {
	body, err := render("contact.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "新的聯絡訊息: " + data.Subject, Body: body}, nil
}
