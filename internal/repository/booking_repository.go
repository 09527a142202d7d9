package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/google/uuid"
)

// InMemoryBookingRepository реализация репозитория бронирований в памяти.
// Хранит слоты, пакеты и бронирования под одним мьютексом, поэтому
// Reserve и Release атомарны так же, как транзакции в PostgreSQL.
type InMemoryBookingRepository struct {
	slots    map[uuid.UUID]domain.Slot
	packages map[uuid.UUID]domain.Package
	bookings map[uuid.UUID]domain.Booking
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryBookingRepository создает новый репозиторий бронирований в памяти
func NewInMemoryBookingRepository(log *logger.Logger) *InMemoryBookingRepository {
	return &InMemoryBookingRepository{
		slots:    make(map[uuid.UUID]domain.Slot),
		packages: make(map[uuid.UUID]domain.Package),
		bookings: make(map[uuid.UUID]domain.Booking),
		log:      log,
	}
}

// Методы для работы со слотами

// CreateSlots создает набор слотов тренера
func (r *InMemoryBookingRepository) CreateSlots(ctx context.Context, slots []domain.Slot) ([]domain.Slot, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	created := make([]domain.Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.ID == uuid.Nil {
			slot.ID = uuid.New()
		}
		slot.CreatedAt = time.Now()
		r.slots[slot.ID] = slot
		created = append(created, slot)
	}

	return created, nil
}

// GetSlotByID возвращает слот по ID
func (r *InMemoryBookingRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	slot, exists := r.slots[id]
	if !exists {
		return domain.Slot{}, ErrNotFound
	}

	return slot, nil
}

// ListSlotsByCoach возвращает слоты тренера в заданном окне
func (r *InMemoryBookingRepository) ListSlotsByCoach(ctx context.Context, coachID uuid.UUID, window domain.SlotWindow, onlyAvailable bool) ([]domain.Slot, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var slots []domain.Slot
	for _, slot := range r.slots {
		if slot.CoachID != coachID {
			continue
		}
		if onlyAvailable && !slot.IsAvailable {
			continue
		}
		if !window.From.IsZero() && slot.StartAt.Before(window.From) {
			continue
		}
		if !window.To.IsZero() && slot.StartAt.After(window.To) {
			continue
		}
		slots = append(slots, slot)
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})

	return slots, nil
}

// DeleteSlot удаляет слот, если по нему нет активного бронирования
func (r *InMemoryBookingRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.slots[id]; !exists {
		return ErrNotFound
	}

	for _, booking := range r.bookings {
		if booking.SlotID == id && booking.Status != domain.BookingStatusCanceled {
			return ErrInvalidOperation
		}
	}

	delete(r.slots, id)

	return nil
}

// Методы для работы с пакетами занятий

// CreatePackage создает новый пакет занятий
func (r *InMemoryBookingRepository) CreatePackage(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	pkg.CreatedAt = time.Now()
	pkg.UpdatedAt = time.Now()

	r.packages[pkg.ID] = pkg

	return pkg, nil
}

// GetPackageByID возвращает пакет по ID
func (r *InMemoryBookingRepository) GetPackageByID(ctx context.Context, id uuid.UUID) (domain.Package, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	pkg, exists := r.packages[id]
	if !exists {
		return domain.Package{}, ErrNotFound
	}

	return pkg, nil
}

// ListPackagesByUser возвращает пакеты клиента
func (r *InMemoryBookingRepository) ListPackagesByUser(ctx context.Context, userID uuid.UUID) ([]domain.Package, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var packages []domain.Package
	for _, pkg := range r.packages {
		if pkg.UserID == userID {
			packages = append(packages, pkg)
		}
	}

	sort.Slice(packages, func(i, j int) bool {
		return packages[i].CreatedAt.Before(packages[j].CreatedAt)
	})

	return packages, nil
}

// Методы для работы с бронированиями

// Reserve атомарно занимает слот, списывает занятие из пакета (если он
// указан) и создает бронирование. Слот занимается только если он еще
// свободен; при любом сбое состояние не меняется.
func (r *InMemoryBookingRepository) Reserve(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	slot, exists := r.slots[booking.SlotID]
	if !exists {
		return domain.Booking{}, ErrNotFound
	}
	if !slot.IsAvailable {
		return domain.Booking{}, ErrConflict
	}
	// На слоте может быть только одно незакрытое бронирование
	for _, existing := range r.bookings {
		if existing.SlotID == booking.SlotID && existing.Status != domain.BookingStatusCanceled {
			return domain.Booking{}, ErrDuplicate
		}
	}

	if booking.PackageID != nil {
		pkg, exists := r.packages[*booking.PackageID]
		if !exists || pkg.UserID != booking.UserID || pkg.CoachID != booking.CoachID {
			return domain.Booking{}, ErrNotFound
		}
		if !pkg.Usable(time.Now()) {
			return domain.Booking{}, ErrConflict
		}
		pkg.Remaining--
		pkg.UpdatedAt = time.Now()
		r.packages[pkg.ID] = pkg
	}

	slot.IsAvailable = false
	r.slots[slot.ID] = slot

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()
	r.bookings[booking.ID] = booking

	return booking, nil
}

// Release атомарно отменяет бронирование, освобождает слот и возвращает
// занятие в пакет. Отмененное или проведенное бронирование отменить нельзя.
func (r *InMemoryBookingRepository) Release(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	booking, exists := r.bookings[bookingID]
	if !exists {
		return domain.Booking{}, ErrNotFound
	}
	if booking.Status == domain.BookingStatusCanceled || booking.Status == domain.BookingStatusCompleted {
		return domain.Booking{}, ErrInvalidOperation
	}

	booking.Status = domain.BookingStatusCanceled
	booking.UpdatedAt = time.Now()
	r.bookings[booking.ID] = booking

	if slot, ok := r.slots[booking.SlotID]; ok {
		slot.IsAvailable = true
		r.slots[slot.ID] = slot
	}

	if booking.PackageID != nil {
		if pkg, ok := r.packages[*booking.PackageID]; ok {
			pkg.Remaining++
			pkg.UpdatedAt = time.Now()
			r.packages[pkg.ID] = pkg
		}
	}

	return booking, nil
}

// GetBookingByID возвращает бронирование по ID
func (r *InMemoryBookingRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	booking, exists := r.bookings[id]
	if !exists {
		return domain.Booking{}, ErrNotFound
	}

	return booking, nil
}

// ListBookings возвращает бронирования по фильтру с пагинацией
func (r *InMemoryBookingRepository) ListBookings(ctx context.Context, filter domain.BookingFilter, page, limit int) ([]domain.Booking, int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var bookings []domain.Booking
	for _, booking := range r.bookings {
		if filter.Status != nil && booking.Status != *filter.Status {
			continue
		}
		if filter.CoachID != nil && booking.CoachID != *filter.CoachID {
			continue
		}
		if filter.UserID != nil && booking.UserID != *filter.UserID {
			continue
		}
		bookings = append(bookings, booking)
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})

	total := len(bookings)
	if limit > 0 {
		start := (page - 1) * limit
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}
		bookings = bookings[start:end]
	}

	return bookings, total, nil
}

// CountActiveBookingsByCoach возвращает число незакрытых бронирований тренера
func (r *InMemoryBookingRepository) CountActiveBookingsByCoach(ctx context.Context, coachID uuid.UUID) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := 0
	for _, booking := range r.bookings {
		if booking.CoachID != coachID {
			continue
		}
		if booking.Status == domain.BookingStatusPending || booking.Status == domain.BookingStatusConfirmed {
			count++
		}
	}

	return count, nil
}

// UpdateBookingStatus обновляет статус бронирования
func (r *InMemoryBookingRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	booking, exists := r.bookings[id]
	if !exists {
		return domain.Booking{}, ErrNotFound
	}

	booking.Status = status
	booking.UpdatedAt = time.Now()
	r.bookings[booking.ID] = booking

	return booking, nil
}

// PostgresBookingRepository реализация репозитория бронирований через PostgreSQL
type PostgresBookingRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresBookingRepository создает новый репозиторий бронирований через PostgreSQL
func NewPostgresBookingRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db:  db,
		log: log,
	}
}

// CreateSlots создает набор слотов тренера в базе данных
func (r *PostgresBookingRepository) CreateSlots(ctx context.Context, slots []domain.Slot) ([]domain.Slot, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO slots (id, coach_id, start_at, end_at, is_available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	created := make([]domain.Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.ID == uuid.Nil {
			slot.ID = uuid.New()
		}
		err := tx.QueryRow(
			ctx,
			query,
			slot.ID,
			slot.CoachID,
			slot.StartAt,
			slot.EndAt,
			slot.IsAvailable,
			time.Now(),
		).Scan(&slot.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to create slot: %w", err)
		}
		created = append(created, slot)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// GetSlotByID возвращает слот по ID из базы данных
func (r *PostgresBookingRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	query := `
		SELECT id, coach_id, start_at, end_at, is_available, created_at
		FROM slots
		WHERE id = $1
	`

	var slot domain.Slot
	err := r.db.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.CoachID,
		&slot.StartAt,
		&slot.EndAt,
		&slot.IsAvailable,
		&slot.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Slot{}, ErrNotFound
		}
		return domain.Slot{}, fmt.Errorf("failed to get slot: %w", err)
	}

	return slot, nil
}

// ListSlotsByCoach возвращает слоты тренера в заданном окне из базы данных
func (r *PostgresBookingRepository) ListSlotsByCoach(ctx context.Context, coachID uuid.UUID, window domain.SlotWindow, onlyAvailable bool) ([]domain.Slot, error) {
	query := `
		SELECT id, coach_id, start_at, end_at, is_available, created_at
		FROM slots
		WHERE coach_id = $1
		  AND ($2::timestamptz IS NULL OR start_at >= $2)
		  AND ($3::timestamptz IS NULL OR start_at <= $3)
		  AND ($4::bool = false OR is_available = true)
		ORDER BY start_at
	`

	var from, to *time.Time
	if !window.From.IsZero() {
		from = &window.From
	}
	if !window.To.IsZero() {
		to = &window.To
	}

	rows, err := r.db.Query(ctx, query, coachID, from, to, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var slot domain.Slot
		err := rows.Scan(
			&slot.ID,
			&slot.CoachID,
			&slot.StartAt,
			&slot.EndAt,
			&slot.IsAvailable,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}

	return slots, nil
}

// DeleteSlot удаляет слот из базы данных, если по нему нет активного бронирования
func (r *PostgresBookingRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	checkQuery := `
		SELECT COUNT(*)
		FROM bookings
		WHERE slot_id = $1 AND status <> 'CANCELED'
	`

	var count int
	if err := r.db.QueryRow(ctx, checkQuery, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check slot bookings: %w", err)
	}
	if count > 0 {
		return ErrInvalidOperation
	}

	result, err := r.db.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// CreatePackage создает новый пакет занятий в базе данных
func (r *PostgresBookingRepository) CreatePackage(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	query := `
		INSERT INTO packages (id, user_id, coach_id, total, remaining, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		pkg.ID,
		pkg.UserID,
		pkg.CoachID,
		pkg.Total,
		pkg.Remaining,
		pkg.ExpiresAt,
		time.Now(),
		time.Now(),
	).Scan(&pkg.CreatedAt, &pkg.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Package{}, ErrNotFound
		}
		return domain.Package{}, fmt.Errorf("failed to create package: %w", err)
	}

	return pkg, nil
}

// GetPackageByID возвращает пакет по ID из базы данных
func (r *PostgresBookingRepository) GetPackageByID(ctx context.Context, id uuid.UUID) (domain.Package, error) {
	query := `
		SELECT id, user_id, coach_id, total, remaining, expires_at, created_at, updated_at
		FROM packages
		WHERE id = $1
	`

	var pkg domain.Package
	err := r.db.QueryRow(ctx, query, id).Scan(
		&pkg.ID,
		&pkg.UserID,
		&pkg.CoachID,
		&pkg.Total,
		&pkg.Remaining,
		&pkg.ExpiresAt,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Package{}, ErrNotFound
		}
		return domain.Package{}, fmt.Errorf("failed to get package: %w", err)
	}

	return pkg, nil
}

// ListPackagesByUser возвращает пакеты клиента из базы данных
func (r *PostgresBookingRepository) ListPackagesByUser(ctx context.Context, userID uuid.UUID) ([]domain.Package, error) {
	query := `
		SELECT id, user_id, coach_id, total, remaining, expires_at, created_at, updated_at
		FROM packages
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer rows.Close()

	var packages []domain.Package
	for rows.Next() {
		var pkg domain.Package
		err := rows.Scan(
			&pkg.ID,
			&pkg.UserID,
			&pkg.CoachID,
			&pkg.Total,
			&pkg.Remaining,
			&pkg.ExpiresAt,
			&pkg.CreatedAt,
			&pkg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return packages, nil
}

// Reserve атомарно занимает слот, списывает занятие из пакета и создает
// бронирование в одной транзакции. Слот и пакет обновляются условными
// UPDATE, поэтому параллельные запросы на один слот получат ErrConflict,
// а не двойное бронирование.
func (r *PostgresBookingRepository) Reserve(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Помечаем слот занятым только если он еще свободен
	slotResult, err := tx.Exec(
		ctx,
		`UPDATE slots SET is_available = false WHERE id = $1 AND is_available = true`,
		booking.SlotID,
	)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to lock slot: %w", err)
	}
	if slotResult.RowsAffected() == 0 {
		return domain.Booking{}, ErrConflict
	}

	// Списываем занятие только из живого пакета владельца на этого тренера
	if booking.PackageID != nil {
		pkgResult, err := tx.Exec(
			ctx,
			`UPDATE packages
			 SET remaining = remaining - 1, updated_at = $4
			 WHERE id = $1 AND user_id = $2 AND coach_id = $3
			   AND remaining > 0 AND expires_at > now()`,
			*booking.PackageID,
			booking.UserID,
			booking.CoachID,
			time.Now(),
		)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("failed to debit package: %w", err)
		}
		if pkgResult.RowsAffected() == 0 {
			return domain.Booking{}, ErrConflict
		}
	}

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	err = tx.QueryRow(
		ctx,
		`INSERT INTO bookings (
			id, user_id, coach_id, slot_id, package_id,
			type, status, payment_status, price, currency, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		booking.ID,
		booking.UserID,
		booking.CoachID,
		booking.SlotID,
		booking.PackageID,
		booking.Type,
		booking.Status,
		booking.PaymentStatus,
		booking.Price,
		booking.Currency,
		booking.Notes,
		time.Now(),
		time.Now(),
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Частичный уникальный индекс по незакрытым бронированиям слота
			if pgErr.Code == "23505" {
				return domain.Booking{}, ErrDuplicate
			}
			if pgErr.Code == "23503" {
				return domain.Booking{}, ErrNotFound
			}
		}
		return domain.Booking{}, fmt.Errorf("failed to create booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return booking, nil
}

// Release атомарно отменяет бронирование, освобождает слот и возвращает
// занятие в пакет в одной транзакции
func (r *PostgresBookingRepository) Release(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var booking domain.Booking
	err = tx.QueryRow(
		ctx,
		`UPDATE bookings
		 SET status = 'CANCELED', updated_at = $2
		 WHERE id = $1 AND status NOT IN ('CANCELED', 'COMPLETED')
		 RETURNING id, user_id, coach_id, slot_id, package_id,
		           type, status, payment_status, price, currency, notes,
		           created_at, updated_at`,
		bookingID,
		time.Now(),
	).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.CoachID,
		&booking.SlotID,
		&booking.PackageID,
		&booking.Type,
		&booking.Status,
		&booking.PaymentStatus,
		&booking.Price,
		&booking.Currency,
		&booking.Notes,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо бронирования нет, либо оно уже отменено или проведено
			var exists bool
			checkErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists)
			if checkErr == nil && exists {
				return domain.Booking{}, ErrInvalidOperation
			}
			return domain.Booking{}, ErrNotFound
		}
		return domain.Booking{}, fmt.Errorf("failed to cancel booking: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE slots SET is_available = true WHERE id = $1`, booking.SlotID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to free slot: %w", err)
	}

	if booking.PackageID != nil {
		_, err = tx.Exec(
			ctx,
			`UPDATE packages SET remaining = remaining + 1, updated_at = $2 WHERE id = $1`,
			*booking.PackageID,
			time.Now(),
		)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("failed to restore package credit: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return booking, nil
}

// GetBookingByID возвращает бронирование по ID из базы данных
func (r *PostgresBookingRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	query := `
		SELECT id, user_id, coach_id, slot_id, package_id,
		       type, status, payment_status, price, currency, notes,
		       created_at, updated_at
		FROM bookings
		WHERE id = $1
	`

	var booking domain.Booking
	err := r.db.QueryRow(ctx, query, id).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.CoachID,
		&booking.SlotID,
		&booking.PackageID,
		&booking.Type,
		&booking.Status,
		&booking.PaymentStatus,
		&booking.Price,
		&booking.Currency,
		&booking.Notes,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, ErrNotFound
		}
		return domain.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// ListBookings возвращает бронирования по фильтру с пагинацией из базы данных
func (r *PostgresBookingRepository) ListBookings(ctx context.Context, filter domain.BookingFilter, page, limit int) ([]domain.Booking, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM bookings
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR coach_id = $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
	`

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, status, filter.CoachID, filter.UserID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := `
		SELECT id, user_id, coach_id, slot_id, package_id,
		       type, status, payment_status, price, currency, notes,
		       created_at, updated_at
		FROM bookings
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR coach_id = $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	rows, err := r.db.Query(ctx, query, status, filter.CoachID, filter.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var booking domain.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.UserID,
			&booking.CoachID,
			&booking.SlotID,
			&booking.PackageID,
			&booking.Type,
			&booking.Status,
			&booking.PaymentStatus,
			&booking.Price,
			&booking.Currency,
			&booking.Notes,
			&booking.CreatedAt,
			&booking.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, total, nil
}

// CountActiveBookingsByCoach возвращает число незакрытых бронирований тренера из базы данных
func (r *PostgresBookingRepository) CountActiveBookingsByCoach(ctx context.Context, coachID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE coach_id = $1 AND status IN ('PENDING', 'CONFIRMED')
	`

	var count int
	if err := r.db.QueryRow(ctx, query, coachID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count coach bookings: %w", err)
	}

	return count, nil
}

// UpdateBookingStatus обновляет статус бронирования в базе данных
func (r *PostgresBookingRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, user_id, coach_id, slot_id, package_id,
		          type, status, payment_status, price, currency, notes,
		          created_at, updated_at
	`

	var booking domain.Booking
	err := r.db.QueryRow(ctx, query, id, status, time.Now()).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.CoachID,
		&booking.SlotID,
		&booking.PackageID,
		&booking.Type,
		&booking.Status,
		&booking.PaymentStatus,
		&booking.Price,
		&booking.Currency,
		&booking.Notes,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, ErrNotFound
		}
		return domain.Booking{}, fmt.Errorf("failed to update booking status: %w", err)
	}

	return booking, nil
}
