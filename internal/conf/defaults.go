// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FridgeCat")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/fridgecat.log")

	viper.SetDefault("crawler.maxconcurrentperdomain", 8)
	viper.SetDefault("crawler.downloaddelay", 1*time.Second)
	viper.SetDefault("crawler.maxdelay", 60*time.Second)
	viper.SetDefault("crawler.autothrottle", true)
	viper.SetDefault("crawler.depthlimit", 4)
	viper.SetDefault("crawler.reseedingredients", false)
	viper.SetDefault("crawler.useragent", "FridgeCat/1.0 (+https://github.com/fridgecat/fridgecat-go)")

	viper.SetDefault("sources.mealdb.baseurl", "https://www.themealdb.com/api/json/v1/1")
	viper.SetDefault("sources.mealdb.timeout", 30*time.Second)
	viper.SetDefault("sources.mealdb.cachettl", 24*time.Hour)
	viper.SetDefault("sources.mealdb.ratelimitms", 500)

	viper.SetDefault("sources.edamam.baseurl", "https://api.edamam.com")
	viper.SetDefault("sources.edamam.appid", "")
	viper.SetDefault("sources.edamam.appkey", "")
	viper.SetDefault("sources.edamam.timeout", 30*time.Second)
	viper.SetDefault("sources.edamam.cachettl", 24*time.Hour)
	viper.SetDefault("sources.edamam.ratelimitms", 6000)

	viper.SetDefault("sources.stilltasty.baseurl", "https://www.stilltasty.com")
	viper.SetDefault("sources.stilltasty.timeout", 30*time.Second)
	viper.SetDefault("sources.stilltasty.cachettl", 24*time.Hour)
	viper.SetDefault("sources.stilltasty.ratelimitms", 1000)

	viper.SetDefault("nlp.similaritythreshold", 0.5)
	viper.SetDefault("nlp.storagebonus", 1.0)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "fridgecat.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "fridgecat")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "fridgecat")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
