package repository

// Models lists every GORM model of the service, in dependency order, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&VehicleModel{},
		&JourneyModel{},
		&JourneyLegModel{},
		&GeofenceModel{},
		&OperatingAreaModel{},
		&RentalModel{},
		&InspectionPhotoModel{},
	}
}
