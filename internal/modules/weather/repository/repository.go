package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"weatherstation-server/internal/modules/weather/types"
)

var ErrNotFound = errors.New("not found")

// SensorFilter narrows sensor listings; empty slices mean no filtering.
type SensorFilter struct {
	LocationIDs   []uint
	SensorTypeIDs []uint
}

// MeasurementFilter narrows measurement listings. Latest keeps only the most
// recent measurement per sensor within the filtered range.
type MeasurementFilter struct {
	SensorIDs []uint
	Start     *time.Time
	End       *time.Time
	Latest    bool
}

type WeatherRepository interface {
	ListLocations(ctx context.Context, userID uint, assignedOnly bool) ([]types.Location, error)
	CreateLocation(ctx context.Context, loc *types.Location) error
	GetLocation(ctx context.Context, userID, id uint) (*types.Location, error)
	UpdateLocation(ctx context.Context, loc *types.Location) error
	DeleteLocation(ctx context.Context, userID, id uint) error

	ListSensorTypes(ctx context.Context, userID uint, assignedOnly bool) ([]types.SensorType, error)
	CreateSensorType(ctx context.Context, st *types.SensorType) error
	GetSensorType(ctx context.Context, userID, id uint) (*types.SensorType, error)
	UpdateSensorType(ctx context.Context, st *types.SensorType) error
	DeleteSensorType(ctx context.Context, userID, id uint) error

	ListSensors(ctx context.Context, userID uint, filter SensorFilter) ([]types.Sensor, error)
	CreateSensor(ctx context.Context, s *types.Sensor) error
	GetSensor(ctx context.Context, userID, id uint) (*types.Sensor, error)
	UpdateSensor(ctx context.Context, s *types.Sensor) error
	DeleteSensor(ctx context.Context, userID, id uint) error

	ListMeasurements(ctx context.Context, userID uint, filter MeasurementFilter) ([]types.Measurement, error)
	CreateMeasurement(ctx context.Context, m *types.Measurement) error
	GetMeasurement(ctx context.Context, userID, id uint) (*types.Measurement, error)
	UpdateMeasurement(ctx context.Context, m *types.Measurement) error
	DeleteMeasurement(ctx context.Context, userID, id uint) error
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) WeatherRepository {
	return &repositoryImpl{db: db}
}

// Locations

func (r *repositoryImpl) ListLocations(ctx context.Context, userID uint, assignedOnly bool) ([]types.Location, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if assignedOnly {
		q = q.Where("EXISTS (SELECT 1 FROM sensors WHERE sensors.location_id = locations.id)")
	}
	var out []types.Location
	if err := q.Order("name DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) CreateLocation(ctx context.Context, loc *types.Location) error {
	if err := r.db.WithContext(ctx).Create(loc).Error; err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetLocation(ctx context.Context, userID, id uint) (*types.Location, error) {
	var loc types.Location
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	return &loc, nil
}

func (r *repositoryImpl) UpdateLocation(ctx context.Context, loc *types.Location) error {
	if err := r.db.WithContext(ctx).Save(loc).Error; err != nil {
		return fmt.Errorf("update location %d: %w", loc.ID, err)
	}
	return nil
}

// DeleteLocation detaches the location from any sensors first, mirroring
// ON DELETE SET NULL.
func (r *repositoryImpl) DeleteLocation(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&types.Sensor{}).
			Where("user_id = ? AND location_id = ?", userID, id).
			Update("location_id", nil).Error
		if err != nil {
			return fmt.Errorf("detach sensors: %w", err)
		}
		res := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&types.Location{})
		if res.Error != nil {
			return fmt.Errorf("delete location %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Sensor types

func (r *repositoryImpl) ListSensorTypes(ctx context.Context, userID uint, assignedOnly bool) ([]types.SensorType, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if assignedOnly {
		q = q.Where("EXISTS (SELECT 1 FROM sensors WHERE sensors.sensor_type_id = sensor_types.id)")
	}
	var out []types.SensorType
	if err := q.Order("name DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sensor types: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) CreateSensorType(ctx context.Context, st *types.SensorType) error {
	if err := r.db.WithContext(ctx).Create(st).Error; err != nil {
		return fmt.Errorf("create sensor type: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetSensorType(ctx context.Context, userID, id uint) (*types.SensorType, error) {
	var st types.SensorType
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sensor type %d: %w", id, err)
	}
	return &st, nil
}

func (r *repositoryImpl) UpdateSensorType(ctx context.Context, st *types.SensorType) error {
	if err := r.db.WithContext(ctx).Save(st).Error; err != nil {
		return fmt.Errorf("update sensor type %d: %w", st.ID, err)
	}
	return nil
}

func (r *repositoryImpl) DeleteSensorType(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&types.Sensor{}).
			Where("user_id = ? AND sensor_type_id = ?", userID, id).
			Update("sensor_type_id", nil).Error
		if err != nil {
			return fmt.Errorf("detach sensors: %w", err)
		}
		res := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&types.SensorType{})
		if res.Error != nil {
			return fmt.Errorf("delete sensor type %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Sensors

func (r *repositoryImpl) ListSensors(ctx context.Context, userID uint, filter SensorFilter) ([]types.Sensor, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(filter.LocationIDs) > 0 {
		q = q.Where("location_id IN ?", filter.LocationIDs)
	}
	if len(filter.SensorTypeIDs) > 0 {
		q = q.Where("sensor_type_id IN ?", filter.SensorTypeIDs)
	}
	var out []types.Sensor
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) CreateSensor(ctx context.Context, s *types.Sensor) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create sensor: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetSensor(ctx context.Context, userID, id uint) (*types.Sensor, error) {
	var s types.Sensor
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sensor %d: %w", id, err)
	}
	return &s, nil
}

func (r *repositoryImpl) UpdateSensor(ctx context.Context, s *types.Sensor) error {
	// Save skips nil pointer fields on updates, so detached type/location
	// would survive; use Select to write them explicitly.
	err := r.db.WithContext(ctx).Model(s).
		Select("name", "description", "sensor_type_id", "location_id").
		Updates(map[string]any{
			"name":           s.Name,
			"description":    s.Description,
			"sensor_type_id": s.SensorTypeID,
			"location_id":    s.LocationID,
		}).Error
	if err != nil {
		return fmt.Errorf("update sensor %d: %w", s.ID, err)
	}
	return nil
}

// DeleteSensor removes the sensor and its measurements, mirroring
// ON DELETE CASCADE.
func (r *repositoryImpl) DeleteSensor(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&types.Sensor{})
		if res.Error != nil {
			return fmt.Errorf("delete sensor %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		err := tx.Where("user_id = ? AND sensor_id = ?", userID, id).Delete(&types.Measurement{}).Error
		if err != nil {
			return fmt.Errorf("delete measurements of sensor %d: %w", id, err)
		}
		return nil
	})
}

// Measurements

func (r *repositoryImpl) measurementScope(userID uint, filter MeasurementFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("user_id = ?", userID)
		if len(filter.SensorIDs) > 0 {
			q = q.Where("sensor_id IN ?", filter.SensorIDs)
		}
		if filter.Start != nil {
			q = q.Where("timestamp >= ?", *filter.Start)
		}
		if filter.End != nil {
			q = q.Where("timestamp <= ?", *filter.End)
		}
		return q
	}
}

func (r *repositoryImpl) ListMeasurements(ctx context.Context, userID uint, filter MeasurementFilter) ([]types.Measurement, error) {
	scope := r.measurementScope(userID, filter)
	q := scope(r.db.WithContext(ctx).Model(&types.Measurement{}))

	if filter.Latest {
		// Row-value subquery keeps only the newest row per sensor within the
		// filtered range; valid on both postgres and sqlite.
		sub := scope(r.db.Model(&types.Measurement{})).
			Select("sensor_id, MAX(timestamp)").
			Group("sensor_id")
		q = q.Where("(sensor_id, timestamp) IN (?)", sub)
	}

	var out []types.Measurement
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) CreateMeasurement(ctx context.Context, m *types.Measurement) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create measurement: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetMeasurement(ctx context.Context, userID, id uint) (*types.Measurement, error) {
	var m types.Measurement
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get measurement %d: %w", id, err)
	}
	return &m, nil
}

func (r *repositoryImpl) UpdateMeasurement(ctx context.Context, m *types.Measurement) error {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("update measurement %d: %w", m.ID, err)
	}
	return nil
}

func (r *repositoryImpl) DeleteMeasurement(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&types.Measurement{})
	if res.Error != nil {
		return fmt.Errorf("delete measurement %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
