package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	HTTPTimeout time.Duration
	LogLevel    string
	CheckoutTTL time.Duration

	Redis      Redis
	Payment    Payment
	BackOffice BackOffice
	Shipping   Shipping
	Mail       Mail
	Kafka      Kafka
}

type Redis struct {
	Addr     string
	Password string
	CartTTL  time.Duration
}

type Payment struct {
	APIBase      string
	AccountID    string
	SessionURL   string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CallbackURL  string
	TermsURL     string
	Currency     string
	VATPercent   int
}

// TokenURL is the client-credentials endpoint of the payment account.
func (p Payment) TokenURL() string {
	return p.Audience() + "/auth/token"
}

// Audience is the account URL the access token is issued for.
func (p Payment) Audience() string {
	return p.APIBase + "/accounts/" + p.AccountID
}

type BackOffice struct {
	BaseURL            string
	Tenant             string
	Store              string
	Token              string
	ShippingProductUID string
	SettleDelay        time.Duration
}

type Shipping struct {
	FreeThreshold int64
	Surcharge     int64
}

type Mail struct {
	APIURL    string
	APIKey    string
	From      string
	Recipient string
	Timeout   time.Duration
}

type Kafka struct {
	Brokers string
	Topic   string
}

func Load() Config {
	return Config{
		Addr:        getenv("KUNDEKLUBB_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		HTTPTimeout: getDuration("HTTP_TIMEOUT", 15*time.Second),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		CheckoutTTL: getDuration("CHECKOUT_ATTEMPT_TTL", 24*time.Hour),
		Redis: Redis{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			CartTTL:  getDuration("CART_TTL", 24*time.Hour),
		},
		Payment: Payment{
			APIBase:      getenv("PAYMENT_API_BASE", "https://api.dintero.com/v1"),
			AccountID:    os.Getenv("PAYMENT_ACCOUNT_ID"),
			SessionURL:   getenv("PAYMENT_SESSION_URL", "https://checkout.dintero.com/v1/sessions"),
			ClientID:     os.Getenv("PAYMENT_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYMENT_CLIENT_SECRET"),
			ReturnURL:    getenv("PAYMENT_RETURN_URL", "https://example.com/accept?status=success"),
			CallbackURL:  getenv("PAYMENT_CALLBACK_URL", "https://example.com/callback?method=GET"),
			TermsURL:     getenv("PAYMENT_TERMS_URL", "https://example.com/terms"),
			Currency:     getenv("PAYMENT_CURRENCY", "NOK"),
			VATPercent:   getInt("PAYMENT_VAT_PERCENT", 25),
		},
		BackOffice: BackOffice{
			BaseURL:            getenv("BACKOFFICE_BASE_URL", "https://api.flowretail.com"),
			Tenant:             os.Getenv("BACKOFFICE_TENANT"),
			Store:              os.Getenv("BACKOFFICE_STORE"),
			Token:              os.Getenv("BACKOFFICE_TOKEN"),
			ShippingProductUID: getenv("BACKOFFICE_SHIPPING_PRODUCT", "b14d9d30-049d-465a-8902-1615db6eb886"),
			SettleDelay:        getDuration("SETTLE_DELAY", 1500*time.Millisecond),
		},
		Shipping: Shipping{
			FreeThreshold: int64(getInt("FREE_SHIPPING_THRESHOLD", 150000)),
			Surcharge:     int64(getInt("SHIPPING_SURCHARGE", 19900)),
		},
		Mail: Mail{
			APIURL:    getenv("MAIL_API_URL", "https://api.sendgrid.com/v3/mail/send"),
			APIKey:    os.Getenv("MAIL_API_KEY"),
			From:      getenv("MAIL_FROM", "butikk@pageone.no"),
			Recipient: os.Getenv("MAIL_STAFF_RECIPIENT"),
			Timeout:   getDuration("MAIL_TIMEOUT", 10*time.Second),
		},
		Kafka: Kafka{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   getenv("KAFKA_TOPIC", "kundeklubb.order-submissions"),
		},
	}
}

// Validate reports the settings the service cannot run without.
func (c Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Mail.Recipient == "" {
		missing = append(missing, "MAIL_STAFF_RECIPIENT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

var ErrMissingSetting = errors.New("required setting is empty")

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
