package models

import "time"

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Persistence record keys.
const (
	KeyAppointments = "appointments"
	KeyLastCleanup  = "lastCleanup"
)

const (
	// DefaultWorkStartHour is the hour of the first slot of the day.
	DefaultWorkStartHour = 8

	// DefaultWorkEndHour ends the working day (exclusive).
	DefaultWorkEndHour = 18

	// DefaultSlotMinutes is the slot length.
	DefaultSlotMinutes = 30

	// DefaultRetentionMonths is how long appointments are kept.
	DefaultRetentionMonths = 6

	// DefaultCleanupInterval is the minimum time between retention sweeps.
	DefaultCleanupInterval = 24 * time.Hour
)

// Messages shown to the client, kept in the shop's language.
const (
	MessageBookingSucceeded = "Agendamento realizado com sucesso!"
	MessageBookingFailed    = "Erro ao realizar o agendamento. Por favor, tente novamente."
	MessageSaveFailed       = "Erro ao salvar o agendamento. Por favor, tente novamente."
	MessageSlotTaken        = "Este horário acabou de ser reservado. Escolha outro horário."
	MessageServiceRequired  = "Selecione pelo menos um serviço."
	MessageHistoryEmpty     = "Nenhum agendamento anterior encontrado."
	MessageHistoryFailed    = "Erro ao carregar o histórico de agendamentos."
)
