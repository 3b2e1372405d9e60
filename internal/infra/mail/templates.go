package mail

import (
	"fmt"

	"github.com/medicore/auth-service/internal/core/port"
)

const otpEmailHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
    <title>%s</title>
    <style>
    body { font-family: Arial, sans-serif; background-color: #f6fff6; margin: 0; padding: 0; }
    .container { background-color: #e0f7e9; max-width: 600px; margin: 40px auto; border: 1px solid #b0eac8; border-radius: 8px; padding: 30px; }
    h1 { color: #2e7d32; text-align: center; }
    .otp-box { background-color: #d4f5dd; border: 2px dashed #81c784; font-size: 28px; text-align: center; padding: 20px; margin: 20px 0; color: #1b5e20; letter-spacing: 5px; font-weight: bold; }
    .message { text-align: center; font-size: 16px; color: #2e7d32; }
    .footer { text-align: center; font-size: 12px; color: #4caf50; margin-top: 30px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p class="message">%s</p>
        <div class="otp-box">%s</div>
        <p class="message">This code is valid for <strong>%d minutes</strong>.</p>
        <div class="footer">
            If you did not request this, you can safely ignore this email.
        </div>
    </div>
</body>
</html>
`

// VerificationMail builds the email-verify challenge message.
func VerificationMail(to, code string, ttlMinutes int) port.Mail {
	const subject = "Verify your MediCore account"
	return port.Mail{
		To:       to,
		Subject:  subject,
		HTMLBody: fmt.Sprintf(otpEmailHTML, subject, "Your verification code", "Use the code below to verify your account:", code, ttlMinutes),
		TextBody: fmt.Sprintf("Use the code below to verify your MediCore account:\n\n%s\n\nThis code is valid for %d minutes.\nIf you did not request this, you can safely ignore this email.\n", code, ttlMinutes),
	}
}

// PasswordResetMail builds the password-reset challenge message.
func PasswordResetMail(to, code string, ttlMinutes int) port.Mail {
	const subject = "Reset your MediCore password"
	return port.Mail{
		To:       to,
		Subject:  subject,
		HTMLBody: fmt.Sprintf(otpEmailHTML, subject, "Password reset code", "Use the code below to reset your password:", code, ttlMinutes),
		TextBody: fmt.Sprintf("Use the code below to reset your MediCore password:\n\n%s\n\nThis code is valid for %d minutes.\nIf you did not request this, you can safely ignore this email.\n", code, ttlMinutes),
	}
}
