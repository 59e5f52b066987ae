package registry

// Registry names.
const (
	DimensionType = "minecraft:dimension_type"
	Biome         = "minecraft:worldgen/biome"
	DamageType    = "minecraft:damage_type"
)

// Synchronised lists every registry sent during configuration.
var Synchronised = []Registry{
	{Name: "minecraft:banner_pattern", Entries: ns(
		"base", "border", "bricks", "circle", "creeper", "cross", "curly_border", "diagonal_left",
		"diagonal_right", "diagonal_up_left", "diagonal_up_right", "flow", "flower", "globe", "gradient",
		"gradient_up", "guster", "half_horizontal", "half_horizontal_bottom", "half_vertical",
		"half_vertical_right", "mojang", "piglin", "rhombus", "skull", "small_stripes",
		"square_bottom_left", "square_bottom_right", "square_top_left", "square_top_right",
		"straight_cross", "stripe_bottom", "stripe_center", "stripe_downleft", "stripe_downright",
		"stripe_left", "stripe_middle", "stripe_right", "stripe_top", "triangle_bottom", "triangle_top",
		"triangles_bottom", "triangles_top",
	)},
	{Name: "minecraft:cat_variant", Entries: ns(
		"all_black", "black", "british_shorthair", "calico", "jellie", "persian", "ragdoll", "red",
		"siamese", "tabby", "white",
	)},
	{Name: "minecraft:chat_type", Entries: ns(
		"chat", "emote_command", "msg_command_incoming", "msg_command_outgoing", "say_command",
		"team_msg_command_incoming", "team_msg_command_outgoing",
	)},
	{Name: "minecraft:chicken_variant", Entries: ns("cold", "temperate", "warm")},
	{Name: "minecraft:cow_variant", Entries: ns("cold", "temperate", "warm")},
	{Name: DamageType, Entries: ns(
		"arrow", "bad_respawn_point", "cactus", "campfire", "cramming", "dragon_breath", "drown",
		"dry_out", "ender_pearl", "explosion", "fall", "falling_anvil", "falling_block",
		"falling_stalactite", "fireball", "fireworks", "fly_into_wall", "freeze", "generic",
		"generic_kill", "hot_floor", "in_fire", "in_wall", "indirect_magic", "lava", "lightning_bolt",
		"mace_smash", "magic", "mob_attack", "mob_attack_no_aggro", "mob_projectile", "on_fire",
		"out_of_world", "outside_border", "player_attack", "player_explosion", "sonic_boom", "spit",
		"stalagmite", "starve", "sting", "sweet_berry_bush", "thorns", "thrown", "trident",
		"unattributed_fireball", "wind_charge", "wither", "wither_skull",
	)},
	{Name: DimensionType, Entries: ns("overworld", "overworld_caves", "the_end", "the_nether")},
	{Name: "minecraft:enchantment", Entries: ns(
		"aqua_affinity", "bane_of_arthropods", "binding_curse", "blast_protection", "breach",
		"channeling", "density", "depth_strider", "efficiency", "feather_falling", "fire_aspect",
		"fire_protection", "flame", "fortune", "frost_walker", "impaling", "infinity", "knockback",
		"looting", "loyalty", "luck_of_the_sea", "lure", "mending", "multishot", "piercing", "power",
		"projectile_protection", "protection", "punch", "quick_charge", "respiration", "riptide",
		"sharpness", "silk_touch", "smite", "soul_speed", "sweeping_edge", "swift_sneak", "thorns",
		"unbreaking", "vanishing_curse", "wind_burst",
	)},
	{Name: "minecraft:frog_variant", Entries: ns("cold", "temperate", "warm")},
	{Name: "minecraft:instrument", Entries: ns(
		"admire_goat_horn", "call_goat_horn", "dream_goat_horn", "feel_goat_horn", "ponder_goat_horn",
		"seek_goat_horn", "sing_goat_horn", "yearn_goat_horn",
	)},
	{Name: "minecraft:jukebox_song", Entries: ns(
		"11", "13", "5", "blocks", "cat", "chirp", "creator", "creator_music_box", "far", "lava_chicken",
		"mall", "mellohi", "otherside", "pigstep", "precipice", "relic", "stal", "strad", "tears", "wait",
		"ward",
	)},
	{Name: "minecraft:painting_variant", Entries: ns(
		"alban", "aztec", "aztec2", "backyard", "baroque", "bomb", "bouquet", "burning_skull", "bust",
		"cavebird", "changing", "cotan", "courbet", "creebet", "donkey_kong", "earth", "endboss", "fern",
		"fighters", "finding", "fire", "graham", "humble", "kebab", "lowmist", "match", "meditative",
		"orb", "owlemons", "passage", "pigscene", "plant", "pointer", "pond", "pool", "prairie_ride",
		"sea", "skeleton", "skull_and_roses", "stage", "sunflowers", "sunset", "tides", "unpacked",
		"void", "wanderer", "wasteland", "water", "wind", "wither",
	)},
	{Name: "minecraft:pig_variant", Entries: ns("cold", "temperate", "warm")},
	{Name: "minecraft:trim_material", Entries: ns(
		"amethyst", "copper", "diamond", "emerald", "gold", "iron", "lapis", "netherite", "quartz",
		"redstone", "resin",
	)},
	{Name: "minecraft:trim_pattern", Entries: ns(
		"bolt", "coast", "dune", "eye", "flow", "host", "raiser", "rib", "sentry", "shaper", "silence",
		"snout", "spire", "tide", "vex", "ward", "wayfinder", "wild",
	)},
	{Name: "minecraft:wolf_sound_variant", Entries: ns("angry", "big", "classic", "cute", "grumpy", "puglin", "sad")},
	{Name: "minecraft:wolf_variant", Entries: ns(
		"ashen", "black", "chestnut", "pale", "rusty", "snowy", "spotted", "striped", "woods",
	)},
	{Name: Biome, Entries: ns(
		"badlands", "bamboo_jungle", "basalt_deltas", "beach", "birch_forest", "cherry_grove",
		"cold_ocean", "crimson_forest", "dark_forest", "deep_cold_ocean", "deep_dark",
		"deep_frozen_ocean", "deep_lukewarm_ocean", "deep_ocean", "desert", "dripstone_caves",
		"end_barrens", "end_highlands", "end_midlands", "eroded_badlands", "flower_forest", "forest",
		"frozen_ocean", "frozen_peaks", "frozen_river", "grove", "ice_spikes", "jagged_peaks", "jungle",
		"lukewarm_ocean", "lush_caves", "mangrove_swamp", "meadow", "mushroom_fields", "nether_wastes",
		"ocean", "old_growth_birch_forest", "old_growth_pine_taiga", "old_growth_spruce_taiga",
		"pale_garden", "plains", "river", "savanna", "savanna_plateau", "small_end_islands",
		"snowy_beach", "snowy_plains", "snowy_slopes", "snowy_taiga", "soul_sand_valley",
		"sparse_jungle", "stony_peaks", "stony_shore", "sunflower_plains", "swamp", "taiga", "the_end",
		"the_void", "warm_ocean", "warped_forest", "windswept_forest", "windswept_gravelly_hills",
		"windswept_hills", "windswept_savanna", "wooded_badlands",
	)},
}

var tagGroups = []tagGroup{
	{registry: DamageType, tags: []tag{
		{name: "minecraft:is_fire", entries: ns("in_fire", "campfire", "on_fire", "lava", "hot_floor", "unattributed_fireball", "fireball")},
		{name: "minecraft:is_fall", entries: ns("fall", "ender_pearl", "stalagmite")},
		{name: "minecraft:is_drowning", entries: ns("drown")},
		{name: "minecraft:is_freezing", entries: ns("freeze")},
		{name: "minecraft:bypasses_invulnerability", entries: ns("out_of_world", "generic_kill")},
	}},
	{registry: Biome, tags: []tag{
		{name: "minecraft:is_ocean", entries: ns("deep_frozen_ocean", "deep_cold_ocean", "deep_ocean", "deep_lukewarm_ocean", "frozen_ocean", "ocean", "cold_ocean", "lukewarm_ocean", "warm_ocean")},
		{name: "minecraft:is_nether", entries: ns("nether_wastes", "soul_sand_valley", "crimson_forest", "warped_forest", "basalt_deltas")},
		{name: "minecraft:is_end", entries: ns("the_end", "end_highlands", "end_midlands", "small_end_islands", "end_barrens")},
	}},
}
