package carrier

import (
	"strconv"

	"github.com/warp/standing-orders/recurring"
)

// SagawaCodeField is the master-data column holding Sagawa codes.
const SagawaCodeField = "sagawa_code"

const sagawaDateLayout = "20060102"

// Sagawa formats rows for the Sagawa export table.
type Sagawa struct{}

func (Sagawa) Kind() Kind             { return KindSagawa }
func (Sagawa) Table() recurring.Table { return recurring.TableSagawaExport }

// Format builds the Sagawa row. Up to three cargo handling tags become
// seal codes.
func (Sagawa) Format(t *recurring.Template, order Order, codes CodeLookup) ExportRow {
	recipientAddr1, recipientAddr2 := SplitAddress(t.Recipient.Address)
	senderAddr1, senderAddr2 := SplitAddress(t.Customer.Address)

	seals := make([]string, 3)
	for i := 0; i < len(seals) && i < len(t.Shipping.CargoHandling); i++ {
		seals[i] = lookup(codes, MasterCargoHandling, t.Shipping.CargoHandling[i], SagawaCodeField)
	}

	return ExportRow{
		Carrier: KindSagawa,
		Fields: []Field{
			{"order_id", order.OrderID},
			{"recipient_phone", t.Recipient.Phone},
			{"recipient_postal_code", t.Recipient.PostalCode},
			{"recipient_address_1", recipientAddr1},
			{"recipient_address_2", recipientAddr2},
			{"recipient_name", t.Recipient.Name},
			{"sender_phone", t.Customer.Phone},
			{"sender_postal_code", t.Customer.PostalCode},
			{"sender_address_1", senderAddr1},
			{"sender_address_2", senderAddr2},
			{"sender_name", t.Customer.Name},
			{"item_name", order.ItemName()},
			{"pieces", strconv.Itoa(order.Pieces())},
			{"ship_date", order.ShippingDate.Time().Format(sagawaDateLayout)},
			{"delivery_date", order.DeliveryDate.Time().Format(sagawaDateLayout)},
			{"delivery_time_code", lookup(codes, MasterDeliveryTimeBands, t.Shipping.DeliveryTimeBand, SagawaCodeField)},
			{"cool_class", lookup(codes, MasterCoolClasses, t.Shipping.CoolClass, SagawaCodeField)},
			{"invoice_type", lookup(codes, MasterInvoiceTypes, t.Shipping.InvoiceType, SagawaCodeField)},
			{"seal_1", seals[0]},
			{"seal_2", seals[1]},
			{"seal_3", seals[2]},
		},
	}
}
