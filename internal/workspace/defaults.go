package workspace

const (
	DefaultCurrency   = "COP"
	DefaultAppVersion = "0.1.0"
	// DocumentSchemaVersion is the layout version written to version.json.
	DocumentSchemaVersion = 1
)

func defaultVersion(now int64) VersionConfig {
	return VersionConfig{SchemaVersion: DocumentSchemaVersion, CreatedAt: now, AppVersion: DefaultAppVersion}
}

func defaultApp(now int64) AppConfig {
	return AppConfig{
		Currency:  DefaultCurrency,
		Language:  "es",
		Theme:     "system",
		WeekStart: "monday",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func defaultCategories(now int64) CategoriesConfig {
	type seed struct{ id, name, icon, color string }
	expenses := []seed{
		{"cat_food", "Comida", "utensils", "#ef4444"},
		{"cat_transport", "Transporte", "car", "#f59e0b"},
		{"cat_health", "Salud", "heart-pulse", "#ec4899"},
		{"cat_edu", "Educación", "graduation-cap", "#8b5cf6"},
		{"cat_auto", "Automóvil", "wrench", "#64748b"},
		{"cat_home", "Vivienda", "home", "#06b6d4"},
		{"cat_sports", "Deportes", "dumbbell", "#10b981"},
		{"cat_entert", "Entretenimiento", "clapperboard", "#f43f5e"},
		{"cat_pets", "Mascotas", "dog", "#d946ef"},
		{"cat_gifts", "Regalos", "gift", "#fb923c"},
		{"cat_clothes", "Ropa", "shirt", "#6366f1"},
		{"cat_services", "Servicios", "zap", "#eab308"},
		{"cat_taxes", "Impuestos", "receipt", "#475569"},
	}
	incomes := []seed{
		{"cat_salary", "Salario", "banknote", "#22c55e"},
		{"cat_extra", "Ingresos extra", "trending-up", "#34d399"},
		{"cat_others", "Otros ingresos", "wallet", "#2dd4bf"},
	}

	var cfg CategoriesConfig
	add := func(kind string, seeds []seed) {
		for _, s := range seeds {
			cfg.Categories = append(cfg.Categories, CategoryItem{
				ID:        s.id,
				Name:      s.name,
				Type:      kind,
				Icon:      s.icon,
				Color:     s.color,
				IsActive:  true,
				CreatedAt: now,
			})
		}
	}
	add("expense", expenses)
	add("income", incomes)
	return cfg
}

func defaultAccounts(now int64) AccountsConfig {
	return AccountsConfig{Accounts: []AccountItem{{
		ID:        "acc_cash",
		Name:      "Efectivo",
		Type:      "cash",
		Currency:  DefaultCurrency,
		IsActive:  true,
		CreatedAt: now,
	}}}
}
