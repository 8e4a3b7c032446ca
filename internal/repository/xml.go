package repository

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/dkurbatov/kassa-ledger/internal/models"
)

// ExportXML returns the persisted snapshot as an XML document, the format
// the scheduled backup job writes. Optional fields are omitted elements so
// absence survives a round trip.
func (r *Repository) ExportXML() string {
	customers, payments := r.Load()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	ledger := doc.CreateElement("ledger")

	studentsEl := ledger.CreateElement("students")
	for _, c := range customers {
		el := studentsEl.CreateElement("student")
		el.CreateElement("id").SetText(c.ID)
		el.CreateElement("name").SetText(c.Name)
		if c.Phone != nil {
			el.CreateElement("phone").SetText(*c.Phone)
		}
		el.CreateElement("productName").SetText(c.ProductName)
		el.CreateElement("debtAmount").SetText(formatAmount(c.DebtAmount))
		el.CreateElement("paidAmount").SetText(formatAmount(c.PaidAmount))
		el.CreateElement("paymentDate").SetText(c.PaymentDate)
		if c.NextPaymentDate != nil {
			el.CreateElement("nextPaymentDate").SetText(*c.NextPaymentDate)
		}
	}

	paymentsEl := ledger.CreateElement("payments")
	for _, p := range payments {
		el := paymentsEl.CreateElement("payment")
		el.CreateElement("id").SetText(p.ID)
		el.CreateElement("studentId").SetText(p.StudentID)
		el.CreateElement("amount").SetText(formatAmount(p.Amount))
		el.CreateElement("date").SetText(p.Date)
		el.CreateElement("note").SetText(p.Note)
	}

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		r.log.Errorf("Failed to export XML: %v", err)
		return ""
	}
	return out
}

// ImportXML replaces the persisted state with the given XML snapshot.
// Both the students and payments sections must be present.
func (r *Repository) ImportXML(xmlText string) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		r.log.Errorf("Failed to import XML: %v", err)
		return false
	}

	ledger := doc.SelectElement("ledger")
	if ledger == nil {
		return false
	}
	studentsEl := ledger.SelectElement("students")
	paymentsEl := ledger.SelectElement("payments")
	if studentsEl == nil || paymentsEl == nil {
		return false
	}

	customers := []models.Customer{}
	for _, el := range studentsEl.SelectElements("student") {
		c, err := customerFromXML(el)
		if err != nil {
			r.log.Errorf("Failed to import XML: %v", err)
			return false
		}
		customers = append(customers, c)
	}

	payments := []models.Payment{}
	for _, el := range paymentsEl.SelectElements("payment") {
		p, err := paymentFromXML(el)
		if err != nil {
			r.log.Errorf("Failed to import XML: %v", err)
			return false
		}
		payments = append(payments, p)
	}

	r.Save(customers, payments, true)
	return true
}

func customerFromXML(el *etree.Element) (models.Customer, error) {
	c := models.Customer{
		ID:          childText(el, "id"),
		Name:        childText(el, "name"),
		ProductName: childText(el, "productName"),
		PaymentDate: childText(el, "paymentDate"),
	}

	var err error
	if c.DebtAmount, err = parseAmount(childText(el, "debtAmount")); err != nil {
		return c, fmt.Errorf("bad debtAmount for customer %s: %w", c.ID, err)
	}
	if c.PaidAmount, err = parseAmount(childText(el, "paidAmount")); err != nil {
		return c, fmt.Errorf("bad paidAmount for customer %s: %w", c.ID, err)
	}

	if phone := el.SelectElement("phone"); phone != nil {
		v := phone.Text()
		c.Phone = &v
	}
	if next := el.SelectElement("nextPaymentDate"); next != nil {
		v := next.Text()
		c.NextPaymentDate = &v
	}
	return c, nil
}

func paymentFromXML(el *etree.Element) (models.Payment, error) {
	p := models.Payment{
		ID:        childText(el, "id"),
		StudentID: childText(el, "studentId"),
		Date:      childText(el, "date"),
		Note:      childText(el, "note"),
	}

	var err error
	if p.Amount, err = parseAmount(childText(el, "amount")); err != nil {
		return p, fmt.Errorf("bad amount for payment %s: %w", p.ID, err)
	}
	return p, nil
}

func childText(el *etree.Element, name string) string {
	if child := el.SelectElement(name); child != nil {
		return child.Text()
	}
	return ""
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
