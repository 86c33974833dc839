package notifications

import (
	"github.com/wolfman30/salonbook/internal/appointments"
)

var defaultTemplates = map[Kind]string{
	KindConfirmation: "שלום {{.customer_name}}, התור שלך ל{{.service}} נקבע לתאריך {{.date}} בשעה {{.time}}. " +
		"נא לאשר הגעה בהשבת \"כן\" או \"לא\" לביטול.",
	KindReminder24h: "תזכורת: שלום {{.customer_name}}, בתאריך {{.date}} בשעה {{.time}} מחכה לך תור ל{{.service}}. " +
		"השב/י \"כן\" לאישור או \"לא\" לביטול.",
	KindReminder3h: "שלום {{.customer_name}}, מזכירים שהתור שלך ל{{.service}} היום בשעה {{.time}}. נתראה!",
	KindCancellation: "שלום {{.customer_name}}, התור שלך ל{{.service}} בתאריך {{.date}} בשעה {{.time}} בוטל. " +
		"נשמח לראותך בפעם אחרת.",
	KindWaitingList: "שלום {{.customer_name}}, התפנה תור ל{{.service}} בתאריך {{.date}} בשעה {{.time}}. " +
		"לקביעת התור יש ליצור קשר ישירות עם העסק, מומלץ תוך 3 שעות. תשובה להודעה זו לא תקבע את התור.",
	KindCustom: "{{.message}}",
}

// cancelLinkPrefix precedes the cancellation URL in confirmation and 24h reminder messages.
const cancelLinkPrefix = "\n\nלביטול התור: "

// DefaultTemplate returns the built-in text for kind.
func DefaultTemplate(kind Kind) (string, bool) {
	tmpl, ok := defaultTemplates[kind]
	return tmpl, ok
}

// templateFields are always present so strict rendering never trips on an
// owner template that references a field the appointment lacks.
var templateFields = []string{
	"customer_name", "service", "date", "time", "employee_name", "business_name", "message",
}

func templateData(appt *appointments.Appointment, settings BusinessSettings, extra map[string]string) map[string]string {
	data := make(map[string]string, len(templateFields)+len(extra))
	for _, f := range templateFields {
		data[f] = ""
	}
	data["business_name"] = settings.BusinessName
	if appt != nil {
		data["customer_name"] = appt.CustomerName
		data["service"] = appt.ServiceType
		data["date"] = appt.DisplayDate()
		data["time"] = appt.DisplayTime()
		data["employee_name"] = appt.EmployeeName
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
