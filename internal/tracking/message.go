package tracking

import (
	"strings"
	"time"
)

const localTimeLayout = "2006-01-02 15:04:05"

// MessageStyle carries the presentation knobs of notification bodies.
type MessageStyle struct {
	Title     string         // first line, e.g. "🚚 Loginext"
	Location  *time.Location // zone used for the event time
	ZoneLabel string         // shown next to the date, e.g. "Tegucigalpa"
}

// FixedZone returns a zone with a fixed offset in hours and no DST.
func FixedZone(label string, offsetHours int) *time.Location {
	return time.FixedZone(label, offsetHours*3600)
}

// FormatLocal renders a millisecond timestamp in loc.
func FormatLocal(tsMS int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(tsMS).In(loc).Format(localTimeLayout)
}

// ProofURL returns the first proof-of-delivery URL of the event: epodList
// first, then esignList.
func (ev NormalizedEvent) ProofURL() string {
	if ev.Raw == nil {
		return ""
	}
	if ev.Raw.HasList("epodList") {
		return ev.Raw.FirstURL("epodList")
	}
	if ev.Raw.HasList("esignList") {
		return ev.Raw.FirstURL("esignList")
	}
	return ""
}

// EventMessage builds the plain-text body announcing a new tracking event.
// orderNo falls back to the configured shipment id when the provider omits it.
func EventMessage(style MessageStyle, shipmentID string, d Data, ev NormalizedEvent) string {
	orderNo := d.OrderNo
	if orderNo == "" {
		orderNo = shipmentID
	}
	label := ev.EventLabel
	if label == "" {
		label = "EVENT"
	}
	zone := style.ZoneLabel
	if zone == "" {
		zone = "UTC"
	}

	var b strings.Builder
	b.WriteString(style.Title)
	b.WriteString("\nOrden: ")
	b.WriteString(orderNo)
	b.WriteString("\nEvento: ")
	b.WriteString(label)
	b.WriteString("\nNodo: ")
	b.WriteString(ev.NodeLabel)
	b.WriteString("\nEstado pedido: ")
	b.WriteString(d.OrderStatus)
	b.WriteString("\nFecha (")
	b.WriteString(zone)
	b.WriteString("): ")
	b.WriteString(FormatLocal(ev.TimestampMS, style.Location))
	if u := ev.ProofURL(); u != "" {
		b.WriteString("\nEPOD/ESIGN: ")
		b.WriteString(u)
	}
	return b.String()
}

// GuideMessage builds the hand-off notice for a validated secondary guide code.
func GuideMessage(shipmentID, code, trackingURL string) string {
	var b strings.Builder
	b.WriteString("📦 Guía local detectada")
	b.WriteString("\nOrden: ")
	b.WriteString(shipmentID)
	b.WriteString("\nGuía: ")
	b.WriteString(code)
	b.WriteString("\nSeguimiento: ")
	b.WriteString(trackingURL)
	return b.String()
}
