package carrier

import (
	"strconv"

	"github.com/warp/standing-orders/recurring"
)

// YamatoCodeField is the master-data column holding Yamato codes.
const YamatoCodeField = "yamato_code"

const yamatoDateLayout = "2006/01/02"

// Yamato formats rows for the Yamato export table.
type Yamato struct{}

func (Yamato) Kind() Kind             { return KindYamato }
func (Yamato) Table() recurring.Table { return recurring.TableYamatoExport }

// Format builds the Yamato row. Cargo handling uses the first two tags.
func (Yamato) Format(t *recurring.Template, order Order, codes CodeLookup) ExportRow {
	recipientAddr, recipientBuilding := SplitAddress(t.Recipient.Address)
	senderAddr, senderBuilding := SplitAddress(t.Customer.Address)

	handling := make([]string, 2)
	for i := 0; i < len(handling) && i < len(t.Shipping.CargoHandling); i++ {
		handling[i] = lookup(codes, MasterCargoHandling, t.Shipping.CargoHandling[i], YamatoCodeField)
	}

	return ExportRow{
		Carrier: KindYamato,
		Fields: []Field{
			{"order_id", order.OrderID},
			{"invoice_type", lookup(codes, MasterInvoiceTypes, t.Shipping.InvoiceType, YamatoCodeField)},
			{"cool_class", lookup(codes, MasterCoolClasses, t.Shipping.CoolClass, YamatoCodeField)},
			{"ship_date", order.ShippingDate.Time().Format(yamatoDateLayout)},
			{"delivery_date", order.DeliveryDate.Time().Format(yamatoDateLayout)},
			{"delivery_time", lookup(codes, MasterDeliveryTimeBands, t.Shipping.DeliveryTimeBand, YamatoCodeField)},
			{"recipient_phone", t.Recipient.Phone},
			{"recipient_postal_code", t.Recipient.PostalCode},
			{"recipient_address", recipientAddr},
			{"recipient_building", recipientBuilding},
			{"recipient_name", t.Recipient.Name},
			{"sender_phone", t.Customer.Phone},
			{"sender_postal_code", t.Customer.PostalCode},
			{"sender_address", senderAddr},
			{"sender_building", senderBuilding},
			{"sender_name", t.Customer.Name},
			{"item_name", order.ItemName()},
			{"handling_1", handling[0]},
			{"handling_2", handling[1]},
			{"pieces", strconv.Itoa(order.Pieces())},
		},
	}
}
