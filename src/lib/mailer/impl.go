package mailer

import (
	"aeropark/src/lib"
	"aeropark/src/models"
	"fmt"
	"log"
	"os"
	"time"
)

func sender() (string, string) {
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "noreply@aeropark.local"
	}
	return from, "AeroPark"
}

// SendReservationConfirmation mails the booking summary right after a
// reservation is created. Called from a goroutine; failures are logged
// and never fail the request.
func SendReservationConfirmation(reservation *models.Reservation) {
	from, fromName := sender()
	body := fmt.Sprintf(
		"Your reservation for spot %s is confirmed.\n\nFrom: %s\nUntil: %s\nAmount due: %.2f\n\nGenerate your entry code from the dashboard before you arrive.",
		reservation.SpotID,
		reservation.Start.Format("Mon, 02 Jan 2006 15:04"),
		reservation.End.Format("Mon, 02 Jan 2006 15:04"),
		reservation.AmountDue,
	)
	input := &lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       []string{reservation.UserEmail},
		Subject:  fmt.Sprintf("Reservation confirmed for spot %s", reservation.SpotID),
		Body:     body,
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("Failed to send confirmation for reservation %s: %s\n", reservation.ID, err.Error())
	}
}

// SendReservationReminder fires shortly before the window closes so
// the user can extend or leave.
func SendReservationReminder(reservation *models.Reservation) {
	from, fromName := sender()
	body := fmt.Sprintf(
		"Your reservation for spot %s ends at %s.\n\nExtend it from the dashboard if you need more time.",
		reservation.SpotID,
		reservation.End.Format("15:04"),
	)
	input := &lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       []string{reservation.UserEmail},
		Subject:  fmt.Sprintf("Reservation for spot %s ends soon", reservation.SpotID),
		Body:     body,
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("Failed to send reminder for reservation %s: %s\n", reservation.ID, err.Error())
	}
}

// SendAccessCode mails a freshly issued code together with its expiry.
func SendAccessCode(code *models.AccessCode) {
	if code.IssuedToEmail == "" {
		return
	}
	from, fromName := sender()
	body := fmt.Sprintf(
		"Your %s code for spot %s is: %s\n\nIt expires at %s (in about %d minutes) and can be used once.",
		code.Kind, code.SpotID, code.Code,
		code.ExpiresAt.Format("15:04"),
		code.RemainingMinutes(time.Now()),
	)
	input := &lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       []string{code.IssuedToEmail},
		Subject:  fmt.Sprintf("Your gate code for spot %s", code.SpotID),
		Body:     body,
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("Failed to send access code for spot %s: %s\n", code.SpotID, err.Error())
	}
}
