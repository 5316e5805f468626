package notify

import "fmt"

const signature = "The Tasky Friends Team"

// WelcomeMessage は登録完了メールを組み立てる。
func WelcomeMessage(name, email string) Message {
	return Message{
		To:      email,
		Subject: "Welcome to Tasky Friends",
		Body: fmt.Sprintf("Hello %s,\n\nWelcome to Tasky Friends. We're excited for you to begin your journey with us!\n\nYour account email is %s. Verify it from your dashboard to unlock every feature.\n\n%s\n",
			name, email, signature),
	}
}

// VerificationOTPMessage はメール検証用OTPの通知メールを組み立てる。
func VerificationOTPMessage(name, email, code string) Message {
	return Message{
		To:      email,
		Subject: "Tasky Friends - Verify Your Email",
		Body: fmt.Sprintf("Hello %s,\n\nYour verification OTP is: %s\n\nPlease use this OTP to verify your email.\n\n%s\n",
			name, code, signature),
	}
}

// ResetOTPMessage はパスワードリセット用OTPの通知メールを組み立てる。
func ResetOTPMessage(name, email, code string) Message {
	return Message{
		To:      email,
		Subject: "Tasky Friends - Reset Your Password",
		Body: fmt.Sprintf("Hello %s,\n\nYour reset password OTP is: %s\n\nPlease use this OTP to reset your password.\n\n%s\n",
			name, code, signature),
	}
}
